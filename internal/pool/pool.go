package pool

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// Pool is the connection pool of one physical database.
type Pool struct {
	id     types.PhysicalID
	driver string
	db     *sql.DB
	logger zerolog.Logger
}

func newPool(id types.PhysicalID, driver string, db *sql.DB, logger zerolog.Logger) *Pool {
	return &Pool{
		id:     id,
		driver: driver,
		db:     db,
		logger: logger.With().Str("target", string(id)).Logger(),
	}
}

// ID returns the physical database id.
func (p *Pool) ID() types.PhysicalID { return p.id }

// Driver returns the database/sql driver name.
func (p *Pool) Driver() string { return p.driver }

// DB returns the underlying *sql.DB.
func (p *Pool) DB() *sql.DB { return p.db }

// Stats returns the database/sql pool statistics.
func (p *Pool) Stats() sql.DBStats { return p.db.Stats() }

// Ping verifies that the database is reachable.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return &types.ConnectionError{Target: p.id, Err: err}
	}
	return nil
}

// Checkout borrows a connection from the pool. It blocks while the pool is
// at its open-connection limit. The caller must Release the lease.
func (p *Pool) Checkout(ctx context.Context) (*Lease, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, &types.ConnectionError{Target: p.id, Err: err}
	}
	l := &Lease{id: newLeaseID(), pool: p, conn: conn}
	p.logger.Trace().Str("lease", l.id).Msg("checkout")
	return l, nil
}

func (p *Pool) close() error {
	return p.db.Close()
}

// Lease is one connection borrowed from a Pool for a single operation.
type Lease struct {
	id   string
	pool *Pool
	conn *sql.Conn

	once sync.Once
	err  error
}

// ID returns the lease id used in log records.
func (l *Lease) ID() string { return l.id }

// Pool returns the pool the lease was borrowed from.
func (l *Lease) Pool() *Pool { return l.pool }

// Conn returns the borrowed connection. It must not be used after Release.
func (l *Lease) Conn() *sql.Conn { return l.conn }

// Release returns the connection to its pool. Release is idempotent.
func (l *Lease) Release() error {
	l.once.Do(func() {
		l.err = l.conn.Close()
		l.pool.logger.Trace().Str("lease", l.id).Msg("checkin")
	})
	return l.err
}

func newLeaseID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
