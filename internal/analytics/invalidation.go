package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Entity names a record kind whose writes affect analytics.
type Entity string

// Watched entities.
const (
	EntitySale     Entity = "sale"
	EntitySaleItem Entity = "sale_item"
	EntityProduct  Entity = "product"
)

// Action is the kind of write.
type Action string

// Write actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ChangeEvent notifies that a watched record was written.
type ChangeEvent struct {
	ID       uuid.UUID `json:"id"`
	Entity   Entity    `json:"entity" validate:"required,oneof=sale sale_item product"`
	Action   Action    `json:"action" validate:"required,oneof=create update delete"`
	RecordID *int64    `json:"record_id,omitempty"`
}

// NewChangeEvent stamps a fresh event ID.
func NewChangeEvent(entity Entity, action Action) ChangeEvent {
	return ChangeEvent{ID: uuid.New(), Entity: entity, Action: action}
}

// ParseChangeEvent decodes the entity:action notification payload.
func ParseChangeEvent(payload string) (ChangeEvent, error) {
	entity, action, ok := strings.Cut(strings.TrimSpace(payload), ":")
	if !ok {
		return ChangeEvent{}, fmt.Errorf("analytics: malformed change payload %q", payload)
	}
	evt := NewChangeEvent(Entity(entity), Action(action))
	if err := evt.validate(); err != nil {
		return ChangeEvent{}, err
	}
	return evt, nil
}

func (e ChangeEvent) validate() error {
	switch e.Entity {
	case EntitySale, EntitySaleItem, EntityProduct:
	default:
		return fmt.Errorf("analytics: unknown entity %q", e.Entity)
	}
	switch e.Action {
	case ActionCreate, ActionUpdate, ActionDelete:
	default:
		return fmt.Errorf("analytics: unknown action %q", e.Action)
	}
	return nil
}

// AfterBump runs once a bump has committed, receiving the new version token.
type AfterBump func(ctx context.Context, version string) error

// Invalidator bumps the cache version whenever a watched record changes.
type Invalidator struct {
	versions VersionSource
	logger   *slog.Logger

	mu    sync.RWMutex
	hooks []AfterBump
}

// NewInvalidator creates an invalidator over versions.
func NewInvalidator(versions VersionSource, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{versions: versions, logger: logger}
}

// OnBump registers a hook executed after every successful bump.
func (i *Invalidator) OnBump(hook AfterBump) {
	if hook == nil {
		return
	}
	i.mu.Lock()
	i.hooks = append(i.hooks, hook)
	i.mu.Unlock()
}

// OnSaleChanged handles any create, update or delete of a sale.
func (i *Invalidator) OnSaleChanged(ctx context.Context) (string, error) {
	return i.Handle(ctx, NewChangeEvent(EntitySale, ActionUpdate))
}

// OnSaleItemChanged handles any create, update or delete of a sale line.
func (i *Invalidator) OnSaleItemChanged(ctx context.Context) (string, error) {
	return i.Handle(ctx, NewChangeEvent(EntitySaleItem, ActionUpdate))
}

// OnProductChanged handles product writes, which may change cost or selling price.
func (i *Invalidator) OnProductChanged(ctx context.Context) (string, error) {
	return i.Handle(ctx, NewChangeEvent(EntityProduct, ActionUpdate))
}

// Handle bumps the version exactly once for evt and then runs the hooks.
// Hook failures are logged and do not fail the bump.
func (i *Invalidator) Handle(ctx context.Context, evt ChangeEvent) (string, error) {
	if err := evt.validate(); err != nil {
		return "", err
	}
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	return i.bump(ctx,
		slog.String("event_id", evt.ID.String()),
		slog.String("entity", string(evt.Entity)),
		slog.String("action", string(evt.Action)),
	)
}

// Bump invalidates every cached result without a triggering record.
func (i *Invalidator) Bump(ctx context.Context, reason string) (string, error) {
	return i.bump(ctx, slog.String("reason", reason))
}

func (i *Invalidator) bump(ctx context.Context, attrs ...any) (string, error) {
	version, err := i.versions.Bump(ctx)
	if err != nil {
		return "", fmt.Errorf("analytics: bump version: %w", err)
	}
	i.logger.Info("analytics cache invalidated", append(attrs, slog.String("version", version))...)

	i.mu.RLock()
	hooks := append([]AfterBump(nil), i.hooks...)
	i.mu.RUnlock()
	for _, hook := range hooks {
		if err := hook(ctx, version); err != nil {
			i.logger.Warn("analytics after-bump hook failed", slog.String("version", version), slog.Any("error", err))
		}
	}
	return version, nil
}
