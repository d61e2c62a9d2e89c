package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitabwire/barberdesk/storage"
)

const (
	connectionTimeout = 5 * time.Second
	defaultNamespace  = "default"
	tableQueryKey     = "storage_table"
	defaultTable      = "barberdesk_storage"
)

// Backend keeps entries in a postgres table, one row per (namespace, key).
// The namespace is the store name so durable and tab stores can share a table.
type Backend struct {
	pool      *pgxpool.Pool
	table     string
	namespace string
	maxAge    time.Duration
}

// New connects to the postgres:// DSN in the options and creates the table when missing.
// The table name may be overridden with the storage_table query parameter.
func New(ctx context.Context, opts ...storage.Option) (*Backend, error) {
	o := storage.NewOptions(opts...)

	table := o.DSN.GetQuery(tableQueryKey)
	if table == "" {
		table = defaultTable
	}
	if !validIdentifier(table) {
		return nil, fmt.Errorf("invalid storage table name %q", table)
	}

	namespace := o.Name
	if namespace == "" {
		namespace = defaultNamespace
	}

	poolCfg, err := pgxpool.ParseConfig(o.DSN.RemoveQuery(tableQueryKey).String())
	if err != nil {
		return nil, err
	}
	poolCfg.ConnConfig.Tracer = newQueryTracer(ctx)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err = pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	b := &Backend{pool: pool, table: table, namespace: namespace, maxAge: o.MaxAge}
	if err = b.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func validIdentifier(name string) bool {
	for _, r := range name {
		if r != '_' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return name != ""
}

func (pb *Backend) migrate(ctx context.Context) error {
	_, err := pb.pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		namespace  TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		expires_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (namespace, key)
	)`, pb.table))
	return err
}

func (pb *Backend) expiry() *time.Time {
	if pb.maxAge <= 0 {
		return nil
	}
	t := time.Now().Add(pb.maxAge)
	return &t
}

func (pb *Backend) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := pb.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT value FROM %s
			WHERE namespace = $1 AND key = $2 AND (expires_at IS NULL OR expires_at > now())`, pb.table),
		pb.namespace, key,
	).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (pb *Backend) Set(ctx context.Context, key string, value string) error {
	_, err := pb.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (namespace, key, value, expires_at, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (namespace, key)
			DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`, pb.table),
		pb.namespace, key, value, pb.expiry(),
	)
	return err
}

func (pb *Backend) Delete(ctx context.Context, key string) error {
	_, err := pb.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND key = $2`, pb.table),
		pb.namespace, key,
	)
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (pb *Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := pb.pool.Query(ctx,
		fmt.Sprintf(`SELECT key FROM %s
			WHERE namespace = $1 AND key LIKE $2 ESCAPE '\'
			AND (expires_at IS NULL OR expires_at > now())
			ORDER BY key`, pb.table),
		pb.namespace, likeEscaper.Replace(prefix)+"%",
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (pb *Backend) Close() error {
	pb.pool.Close()
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
