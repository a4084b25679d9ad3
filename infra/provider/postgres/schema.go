package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kilianp07/parkadvisor/core/model"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the tables owned by the advisor. The spatial
// functions are provisioned with the road network and are not created here.
func (p *Provider) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ReplaceBuildings swaps the building table for the given list, in a single
// transaction when the connection supports one.
func (p *Provider) ReplaceBuildings(ctx context.Context, buildings []model.Building) error {
	if b, ok := p.db.(interface {
		Begin(context.Context) (pgx.Tx, error)
	}); ok {
		return pgx.BeginFunc(ctx, b, func(tx pgx.Tx) error {
			return replaceBuildings(ctx, tx, buildings)
		})
	}
	return replaceBuildings(ctx, p.db, buildings)
}

func replaceBuildings(ctx context.Context, db execer, buildings []model.Building) error {
	if _, err := db.Exec(ctx, `DELETE FROM buildings`); err != nil {
		return fmt.Errorf("delete buildings: %w", err)
	}
	for _, b := range buildings {
		if _, err := db.Exec(ctx, `INSERT INTO buildings (name, lon, lat) VALUES ($1, $2, $3)`,
			string(b.Label), b.Position.Lon, b.Position.Lat); err != nil {
			return fmt.Errorf("insert building %s: %w", b.Label, err)
		}
	}
	return nil
}
