package event

import (
	"context"
	"log/slog"

	"github.com/utafrali/catalog-sync/internal/catalog"
)

// LogNotifier writes notifications to a structured logger at their level.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n catalog.Notification) {
	level := slog.LevelInfo
	switch n.Level {
	case catalog.LevelWarn:
		level = slog.LevelWarn
	case catalog.LevelError:
		level = slog.LevelError
	}

	l.logger.LogAttrs(ctx, level, n.Message,
		slog.String("kind", string(n.Kind)),
		slog.String("catalog_id", n.CatalogID),
		slog.Any("ids", n.IDs),
	)
}

// MultiNotifier fans a notification out to every sink in order.
type MultiNotifier []catalog.Notifier

func (m MultiNotifier) Notify(ctx context.Context, n catalog.Notification) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(ctx, n)
		}
	}
}
