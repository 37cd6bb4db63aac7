package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hitoshi/userbase/internal/model"
)

// PostgresStatusRepo はPostgreSQLのサーバー情報を読み出すリポジトリ。
type PostgresStatusRepo struct {
	db Executor
}

// NewPostgresStatusRepo はPostgresStatusRepoを生成する。
func NewPostgresStatusRepo(db Executor) *PostgresStatusRepo {
	return &PostgresStatusRepo{db: db}
}

// DatabaseStatus はサーバーバージョン、最大接続数、接続中のDBに対する接続数を返す。
func (r *PostgresStatusRepo) DatabaseStatus(ctx context.Context) (*model.DatabaseStatus, error) {
	var version string
	if err := r.db.GetContext(ctx, &version, `SHOW server_version`); err != nil {
		return nil, storageError("read server version", err)
	}

	var maxConnectionsRaw string
	if err := r.db.GetContext(ctx, &maxConnectionsRaw, `SHOW max_connections`); err != nil {
		return nil, storageError("read max connections", err)
	}
	maxConnections, err := strconv.Atoi(maxConnectionsRaw)
	if err != nil {
		return nil, storageError("parse max connections", fmt.Errorf("unexpected value %q: %w", maxConnectionsRaw, err))
	}

	var openConnections int
	if err := r.db.GetContext(ctx, &openConnections,
		`SELECT count(*)::int FROM pg_stat_activity WHERE datname = current_database()`,
	); err != nil {
		return nil, storageError("count open connections", err)
	}

	return &model.DatabaseStatus{
		Version:         version,
		MaxConnections:  maxConnections,
		OpenConnections: openConnections,
	}, nil
}

// compile-time interface check
var _ StatusRepository = (*PostgresStatusRepo)(nil)
