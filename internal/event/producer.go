package event

import (
	"context"
	"log/slog"

	"github.com/utafrali/catalog-sync/internal/catalog"
	pkgkafka "github.com/utafrali/catalog-sync/pkg/kafka"
	"github.com/utafrali/catalog-sync/pkg/logger"
)

// Kafka topics for catalog change events.
const (
	TopicProductsAdded   = "catalog.products.added"
	TopicProductsDeleted = "catalog.products.deleted"
	TopicProductUpdated  = "catalog.product.updated"
	TopicSetsChanged     = "catalog.sets.changed"
)

// AggregateTypeCatalog is the aggregate every event is keyed on.
const AggregateTypeCatalog = "catalog"

// SourceCatalogSync identifies this service as the event source.
const SourceCatalogSync = "catalog-sync"

var topicByKind = map[catalog.Kind]string{
	catalog.KindProductsAdded:   TopicProductsAdded,
	catalog.KindProductsDeleted: TopicProductsDeleted,
	catalog.KindProductUpdated:  TopicProductUpdated,
	catalog.KindSetsChanged:     TopicSetsChanged,
}

// ChangeData is the payload of every catalog change event.
type ChangeData struct {
	Level   string   `json:"level"`
	Message string   `json:"message"`
	IDs     []string `json:"ids,omitempty"`
}

// Publisher is satisfied by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer turns catalog notifications into Kafka events.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

var _ catalog.Notifier = (*Producer)(nil)

// NewProducer creates a notification producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// Notify publishes n. Failures are logged and never reach the caller.
func (p *Producer) Notify(ctx context.Context, n catalog.Notification) {
	topic, ok := topicByKind[n.Kind]
	if !ok {
		p.logger.WarnContext(ctx, "no topic for notification kind", slog.String("kind", string(n.Kind)))
		return
	}

	data := ChangeData{Level: string(n.Level), Message: n.Message, IDs: n.IDs}
	event, err := pkgkafka.NewEvent(string(n.Kind), n.CatalogID, AggregateTypeCatalog, SourceCatalogSync, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build event",
			slog.String("kind", string(n.Kind)),
			slog.String("error", err.Error()),
		)
		return
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx)).
		WithMetadata("session_id", logger.SessionIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		p.logger.WarnContext(ctx, "catalog change event dropped",
			slog.String("topic", topic),
			slog.String("catalog_id", n.CatalogID),
			slog.String("error", err.Error()),
		)
		return
	}

	p.logger.DebugContext(ctx, "published catalog change event",
		slog.String("topic", topic),
		slog.String("catalog_id", n.CatalogID),
	)
}
