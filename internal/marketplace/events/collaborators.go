package events

import (
	"context"
	"log/slog"

	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
)

// LogSender is a Sender that only logs. Stands in until a real
// notification provider is wired at startup.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, recipient, kind string, payload []byte) error {
	s.Logger.Info("Notification sent",
		slog.String("recipient", recipient),
		slog.String("kind", kind),
		slog.Int("payload_size", len(payload)),
	)
	return nil
}

// LogGeoIndexer is a GeoIndexer that only logs. Stands in until a real
// geo-index backend is wired at startup.
type LogGeoIndexer struct {
	Logger *slog.Logger
}

func (g *LogGeoIndexer) Sync(ctx context.Context, jobID string, op domain.GeoSyncOperation) error {
	g.Logger.Info("Geo index synced",
		slog.String("job_id", jobID),
		slog.String("operation", string(op)),
	)
	return nil
}
