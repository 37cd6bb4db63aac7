// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/userbase/internal/model"
)

// Executor はリポジトリが利用するQuery Executor。
// パラメータは常に位置指定（$1, $2, ...）で渡し、SQL文字列に埋め込まない。
// *sqlx.DB と *sqlx.Tx の両方がこのインターフェースを満たす。
type Executor interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByUsername はusernameを大文字小文字を区別せずに検索する。
	// 見つからない場合はnilを返す。複数行が一致した場合はmodel.ErrAmbiguousResultを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// ExistsByUsername は大文字小文字を区別せずに一致するusernameが存在するかを返す。
	// excludeIDが空でない場合はそのIDの行を除外する。
	ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error)

	// ExistsByEmail は大文字小文字を区別せずに一致するemailが存在するかを返す。
	// excludeIDが空でない場合はそのIDの行を除外する。
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)

	// Create はユーザーを作成し、DBが付与したタイムスタンプを含む行を返す。
	// Passwordはハッシュ化済みであること。
	// ユニーク制約違反はmodel.DuplicateFieldErrorに変換する。
	Create(ctx context.Context, user *model.User) (*model.User, error)

	// Update はパッチに含まれるカラムとupdated_atのみを更新し、更新後の行を返す。
	// 対象行が存在しない場合はnilを返す。
	// ユニーク制約違反はmodel.DuplicateFieldErrorに変換する。
	Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error)
}

// StatusRepository はデータベースのメタデータを読み出すインターフェース。
type StatusRepository interface {
	// DatabaseStatus はサーバーバージョン、最大接続数、現在の接続数を返す。
	DatabaseStatus(ctx context.Context) (*model.DatabaseStatus, error)
}
