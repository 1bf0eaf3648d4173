package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/tursodatabase/go-libsql"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/tagall/internal/paths"
	"github.com/mesh-intelligence/tagall/pkg/types"
)

// Driver names registered by the engines' database packages.
const (
	localDriver  = "sqlite"
	remoteDriver = "libsql"
)

const busyTimeoutMillis = 5000

// Engine owns the storage backend behind a Conn.
type Engine interface {
	// Mode is types.ModeLocal or types.ModeReplica.
	Mode() string
	// Sync pulls and pushes frames against the cloud database. Local
	// engines return types.ErrSyncNotConfigured.
	Sync(ctx context.Context) error
	// Stats reports the successful syncs of this engine.
	Stats() SyncStats
	Close() error
}

// SyncStats counts the successful syncs of an engine.
type SyncStats struct {
	Last  time.Time
	Count int
}

type localEngine struct{}

func (localEngine) Mode() string { return types.ModeLocal }

func (localEngine) Sync(context.Context) error { return types.ErrSyncNotConfigured }

func (localEngine) Stats() SyncStats { return SyncStats{} }

func (localEngine) Close() error { return nil }

type replicaEngine struct {
	connector *libsql.Connector

	mu    sync.Mutex
	stats SyncStats
}

func (e *replicaEngine) Mode() string { return types.ModeReplica }

// Sync runs the connector's sync in the background so a cancelled or
// expired ctx returns promptly. The replication call itself cannot be
// interrupted and finishes on its own.
func (e *replicaEngine) Sync(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		_, err := e.connector.Sync()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("syncing replica: %w", err)
		}
		e.mu.Lock()
		e.stats.Last = time.Now()
		e.stats.Count++
		e.mu.Unlock()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("syncing replica: %w", ctx.Err())
	}
}

func (e *replicaEngine) Stats() SyncStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *replicaEngine) Close() error { return e.connector.Close() }

// localDSN enables foreign keys and a busy timeout on every connection and
// keeps the rollback journal, so a closed store is one self-contained file.
// The path is percent-escaped so '?' and '#' in it stay part of the name.
func localDSN(path string) string {
	u := url.URL{Path: filepath.ToSlash(path)}
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_pragma=journal_mode(DELETE)",
		u.EscapedPath(), busyTimeoutMillis)
}

// OpenLocal opens the local store file at path and migrates its schema.
func OpenLocal(ctx context.Context, path string) (*Conn, error) {
	db, err := sql.Open(localDriver, localDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	conn := &Conn{DB: db, Engine: localEngine{}}
	if err := db.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := Migrate(ctx, db); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// OpenReplica opens path as an embedded replica of the cloud database in
// cfg and migrates its schema. Writes are forwarded to the cloud primary.
func OpenReplica(ctx context.Context, path string, cfg types.SyncConfig) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkDBFile(path); err != nil {
		return nil, localStateErr(err)
	}
	connector, err := libsql.NewEmbeddedReplicaConnector(path, cfg.URL, libsql.WithAuthToken(cfg.Token))
	if err != nil {
		return nil, fmt.Errorf("opening replica %s: %w", path, err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)

	conn := &Conn{DB: db, Engine: &replicaEngine{connector: connector}}
	if err := applyPragmas(ctx, db); err != nil {
		conn.Close()
		return nil, localStateErr(fmt.Errorf("opening replica %s: %w", path, err))
	}
	if err := Migrate(ctx, db); err != nil {
		conn.Close()
		return nil, localStateErr(err)
	}
	return conn, nil
}

// OpenConn opens the store in files, as a replica when cfg is set and as a
// local store otherwise.
func OpenConn(ctx context.Context, files paths.StoreFiles, cfg *types.SyncConfig) (*Conn, error) {
	if cfg == nil {
		return OpenLocal(ctx, files.DB)
	}
	return OpenReplica(ctx, files.DB, *cfg)
}

// Opener opens a migrated connection for a store. OpenConn is the default;
// tests substitute their own.
type Opener func(ctx context.Context, files paths.StoreFiles, cfg *types.SyncConfig) (*Conn, error)

// openRemote connects straight to the cloud database in cfg.
func openRemote(ctx context.Context, cfg types.SyncConfig) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open(remoteDriver, remoteDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening remote database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to remote database: %w", err)
	}
	return db, nil
}

// CheckRemote verifies that the cloud database in cfg accepts the token
// and answers a query. It writes nothing.
func CheckRemote(ctx context.Context, cfg types.SyncConfig) error {
	db, err := openRemote(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var one int
	if err := db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("querying remote database: %w", err)
	}
	return nil
}

// MigrateRemote applies the schema directly to the cloud database in cfg.
func MigrateRemote(ctx context.Context, cfg types.SyncConfig) error {
	db, err := openRemote(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return Migrate(ctx, db)
}

func remoteDSN(cfg types.SyncConfig) string {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return cfg.URL
	}
	q := u.Query()
	q.Set("authToken", cfg.Token)
	u.RawQuery = q.Encode()
	return u.String()
}

// applyPragmas sets the connection pragmas that engines without DSN pragma
// support need. The pool holds a single connection, so they stick.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	for _, p := range []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMillis),
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}
