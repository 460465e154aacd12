package pool

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// Opener opens the *sql.DB for one physical database.
type Opener func(ctx context.Context, id types.PhysicalID, config types.Database) (*sql.DB, error)

// OpenSQL is the default Opener. It opens the database with the configured
// driver and applies the pool limits. Connections are established lazily.
func OpenSQL(ctx context.Context, id types.PhysicalID, config types.Database) (*sql.DB, error) {
	db, err := sql.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, err
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	return db, nil
}
