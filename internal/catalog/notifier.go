package catalog

import "context"

// Level is the severity of a Notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Kind identifies which catalog change a Notification reports.
type Kind string

const (
	KindProductsAdded   Kind = "products.added"
	KindProductsDeleted Kind = "products.deleted"
	KindProductUpdated  Kind = "product.updated"
	KindSetsChanged     Kind = "sets.changed"
)

// Notification is a user-facing message about a completed or failed change.
type Notification struct {
	Level     Level    `json:"level"`
	Kind      Kind     `json:"kind"`
	Message   string   `json:"message"`
	CatalogID string   `json:"catalog_id"`
	IDs       []string `json:"ids,omitempty"`
}

// Notifier receives notifications. Implementations must not block for long
// and never fail the operation that produced the notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) {}
