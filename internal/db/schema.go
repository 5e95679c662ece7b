package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/dstack-labs/bronzeload/pkg/bronze"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the bronze and ingestion schemas and the lineage
// relations if they do not exist. Safe to run repeatedly.
func EnsureSchema(ctx context.Context, sess bronze.Session) error {
	if _, err := sess.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply lineage schema: %w", err)
	}
	return nil
}
