package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

//go:embed schema.sql
var schema string

const channelPlaceholder = "{{channel}}"

// Schema renders the bundled DDL with triggers notifying on channel.
func Schema(channel string) (string, error) {
	if channel == "" {
		return "", fmt.Errorf("platform/db: notify channel required")
	}
	return strings.ReplaceAll(schema, channelPlaceholder, strings.ReplaceAll(channel, "'", "''")), nil
}

// Migrate applies the bundled schema in a single transaction. Every statement
// is idempotent so Migrate can run on each deploy.
func Migrate(ctx context.Context, db Beginner, channel string) error {
	ddl, err := Schema(channel)
	if err != nil {
		return err
	}
	return WithTx(ctx, db, pgx.ReadCommitted, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("platform/db: apply schema: %w", err)
		}
		return nil
	})
}
