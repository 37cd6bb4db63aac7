package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hitoshi/userbase/internal/model"
)

const userColumns = `id, username, email, password, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db Executor
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db Executor) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByUsername はusernameを大文字小文字を区別せずに検索する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var users []model.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1) LIMIT 2`,
		username,
	)
	if err != nil {
		return nil, storageError("find user by username", err)
	}

	switch len(users) {
	case 0:
		return nil, nil
	case 1:
		return &users[0], nil
	default:
		return nil, model.ErrAmbiguousResult
	}
}

// ExistsByUsername は一致するusernameが存在するかを返す。
func (r *PostgresUserRepo) ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (
			SELECT 1 FROM users
			WHERE LOWER(username) = LOWER($1) AND ($2::uuid IS NULL OR id <> $2::uuid)
		)`,
		username, nullableID(excludeID),
	)
	if err != nil {
		return false, storageError("check username uniqueness", err)
	}
	return exists, nil
}

// ExistsByEmail は一致するemailが存在するかを返す。
func (r *PostgresUserRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (
			SELECT 1 FROM users
			WHERE LOWER(email) = LOWER($1) AND ($2::uuid IS NULL OR id <> $2::uuid)
		)`,
		email, nullableID(excludeID),
	)
	if err != nil {
		return false, storageError("check email uniqueness", err)
	}
	return exists, nil
}

// Create はユーザーを作成する。created_atとupdated_atはDBのnow()で同一値になる。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) (*model.User, error) {
	created := &model.User{}
	err := r.db.GetContext(ctx, created,
		`INSERT INTO users (id, username, email, password)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		user.ID, user.Username, user.Email, user.Password,
	)
	if err != nil {
		return nil, storageError("insert user", translateUniqueViolation(err))
	}
	return created, nil
}

// Update はパッチに含まれるカラムのみを更新する。
// 同一行に対する並行更新でも、パッチに含まれないカラムは上書きしない。
func (r *PostgresUserRepo) Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	updated := &model.User{}
	err := r.db.GetContext(ctx, updated,
		`UPDATE users
		 SET username = COALESCE($2, username),
		     email = COALESCE($3, email),
		     password = COALESCE($4, password),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, nullableString(patch.Username), nullableString(patch.Email), nullableString(patch.Password),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("update user", translateUniqueViolation(err))
	}
	return updated, nil
}

// nullableID は空文字をSQLのNULLとして扱う。
func nullableID(id string) interface{} {
	if id == "" {
		return nil
	}
	return id
}

// nullableString はnilポインタをSQLのNULLとして扱う。
func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
