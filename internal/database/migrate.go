// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/hitoshi/userbase/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Outcome はApplyPendingの結果種別。どちらもエラーではない。
type Outcome string

const (
	// OutcomeApplied は1件以上のマイグレーションを適用したことを示す。
	OutcomeApplied Outcome = "applied"
	// OutcomeNonePending は適用対象がなかったことを示す。
	OutcomeNonePending Outcome = "none_pending"
)

var (
	// ErrRollbackUnsupported はロールバック要求を拒否する際のエラー。
	ErrRollbackUnsupported = errors.New("migration rollback is not supported")
	// ErrDirtyLedger は前回のマイグレーションが途中で失敗し、手動での修復が必要な状態を示す。
	ErrDirtyLedger = errors.New("migration ledger is dirty")
)

// ApplyResult はApplyPendingの結果。
type ApplyResult struct {
	Outcome Outcome
	Applied []model.Migration
}

// migrator は*migrate.Migrateのうちレジャーが利用するメソッド。
type migrator interface {
	Version() (version uint, dirty bool, err error)
	Up() error
	Close() (sourceErr error, databaseErr error)
}

// Ledger は適用済みマイグレーションを追跡し、未適用分を昇順に適用する。
// 追跡テーブル（schema_migrations）は初回実行時にgolang-migrateが作成する。
type Ledger struct {
	newMigrator func(src source.Driver) (migrator, error)
	newSource   func() (source.Driver, error)

	// 同一プロセス内の呼び出しを直列化し、適用前後のバージョン比較を正確にする。
	// プロセス間はgolang-migrateのアドバイザリロックで直列化される。
	mu sync.Mutex
}

// NewLedger はdatabaseURLに対するLedgerを生成する。
// 接続は各操作ごとに開閉する。
func NewLedger(databaseURL string) *Ledger {
	return &Ledger{
		newMigrator: func(src source.Driver) (migrator, error) {
			m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		newSource: newEmbeddedSource,
	}
}

func newEmbeddedSource() (source.Driver, error) {
	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	return src, nil
}

// Migrations は定義済みマイグレーションをタイムスタンプの昇順で返す。
func (l *Ledger) Migrations() ([]model.Migration, error) {
	src, err := l.newSource()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return listMigrations(src)
}

// listMigrations はソースに含まれるupマイグレーションを昇順に列挙する。
func listMigrations(src source.Driver) ([]model.Migration, error) {
	var migrations []model.Migration

	version, err := src.First()
	for {
		if errors.Is(err, os.ErrNotExist) {
			return migrations, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate migrations: %w", err)
		}

		r, identifier, readErr := src.ReadUp(version)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read migration %d: %w", version, readErr)
		}
		r.Close()

		name := fmt.Sprintf("%d_%s", version, identifier)
		migrations = append(migrations, model.Migration{
			Name:      name,
			Path:      fmt.Sprintf("%s/%s.up.sql", migrationsDir, name),
			Timestamp: int64(version),
		})

		version, err = src.Next(version)
	}
}

// ApplyPending は未適用のマイグレーションを昇順に適用し、今回適用したものを返す。
// 適用対象がない場合は空のリストとOutcomeNonePendingを返す。
// 途中で失敗した場合は、コミット済みの分を残したままエラーを返す。
func (l *Ledger) ApplyPending(ctx context.Context) (*ApplyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	known, err := l.Migrations()
	if err != nil {
		return nil, err
	}

	m, err := l.open()
	if err != nil {
		return nil, err
	}
	defer closeMigrator(m)

	before, err := currentVersion(m)
	if err != nil {
		return nil, err
	}

	if len(migrationsBetween(known, before, maxVersion(known))) == 0 {
		return &ApplyResult{Outcome: OutcomeNonePending, Applied: []model.Migration{}}, nil
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// 別プロセスが先に適用した
			return &ApplyResult{Outcome: OutcomeNonePending, Applied: []model.Migration{}}, nil
		}
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	after, err := currentVersion(m)
	if err != nil {
		return nil, err
	}

	applied := migrationsBetween(known, before, after)
	if len(applied) == 0 {
		return &ApplyResult{Outcome: OutcomeNonePending, Applied: []model.Migration{}}, nil
	}

	for _, mig := range applied {
		slog.Info("マイグレーションを適用しました",
			slog.String("name", mig.Name),
			slog.Int64("timestamp", mig.Timestamp),
		)
	}

	return &ApplyResult{Outcome: OutcomeApplied, Applied: applied}, nil
}

// Pending は未適用のマイグレーションを適用せずに返す。
func (l *Ledger) Pending(ctx context.Context) ([]model.Migration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	known, err := l.Migrations()
	if err != nil {
		return nil, err
	}

	m, err := l.open()
	if err != nil {
		return nil, err
	}
	defer closeMigrator(m)

	current, err := currentVersion(m)
	if err != nil {
		return nil, err
	}

	return migrationsBetween(known, current, maxVersion(known)), nil
}

// Rollback は常にErrRollbackUnsupportedを返す。適用済みマイグレーションは取り消さない。
func (l *Ledger) Rollback(ctx context.Context) error {
	return ErrRollbackUnsupported
}

func (l *Ledger) open() (migrator, error) {
	src, err := l.newSource()
	if err != nil {
		return nil, err
	}

	m, err := l.newMigrator(src)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// currentVersion は適用済みの最新バージョンを返す。未適用の場合は0。
func currentVersion(m migrator) (uint, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("%w: version %d", ErrDirtyLedger, version)
	}
	return version, nil
}

// migrationsBetween はタイムスタンプがfromより大きくto以下のマイグレーションを返す。
func migrationsBetween(known []model.Migration, from, to uint) []model.Migration {
	result := []model.Migration{}
	for _, mig := range known {
		if mig.Timestamp > int64(from) && mig.Timestamp <= int64(to) {
			result = append(result, mig)
		}
	}
	return result
}

func maxVersion(known []model.Migration) uint {
	if len(known) == 0 {
		return 0
	}
	return uint(known[len(known)-1].Timestamp)
}

func closeMigrator(m migrator) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		slog.Warn("マイグレーションソースのクローズに失敗しました", slog.String("error", srcErr.Error()))
	}
	if dbErr != nil {
		slog.Warn("マイグレーション用DB接続のクローズに失敗しました", slog.String("error", dbErr.Error()))
	}
}
