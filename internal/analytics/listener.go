package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultListenChannel is the NOTIFY channel written by the bundled triggers.
const DefaultListenChannel = "retail_changes"

// Listener turns Postgres NOTIFY messages into invalidations so writes made
// outside this process still bump the cache version.
type Listener struct {
	pool        *pgxpool.Pool
	channel     string
	invalidator *Invalidator
	logger      *slog.Logger
	retryDelay  time.Duration
}

// NewListener creates a listener on channel.
func NewListener(pool *pgxpool.Pool, channel string, invalidator *Invalidator, logger *slog.Logger) *Listener {
	if channel == "" {
		channel = DefaultListenChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		pool:        pool,
		channel:     channel,
		invalidator: invalidator,
		logger:      logger,
		retryDelay:  5 * time.Second,
	}
}

// Run listens until ctx is cancelled, reconnecting after connection loss.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("analytics listener disconnected", slog.String("channel", l.channel), slog.Any("error", err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	// Anything written while disconnected went unnoticed.
	if _, err := l.invalidator.Bump(ctx, "listener connected"); err != nil {
		l.logger.Warn("analytics listener resync failed", slog.Any("error", err))
	}
	l.logger.Info("analytics listener started", slog.String("channel", l.channel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if err := l.Dispatch(ctx, n.Payload); err != nil {
			l.logger.Warn("analytics notification dropped", slog.String("payload", n.Payload), slog.Any("error", err))
		}
	}
}

// Dispatch handles one entity:action payload.
func (l *Listener) Dispatch(ctx context.Context, payload string) error {
	evt, err := ParseChangeEvent(payload)
	if err != nil {
		return err
	}
	if l.invalidator == nil {
		return errors.New("analytics: listener has no invalidator")
	}
	_, err = l.invalidator.Handle(ctx, evt)
	return err
}
