// Package model はドメインモデルを定義する。
package model

import "time"

// ユーザー属性の長さ上限。usersテーブルのカラム定義と一致させる。
const (
	MaxUsernameLength = 30
	MaxEmailLength    = 254
	// MaxPasswordLength はbcryptが意味を持つ入力の最大バイト数。
	MaxPasswordLength = 72
)

// User はアカウント1件を表す。
// Passwordには常にハッシュ値が入り、平文が格納されることはない。
type User struct {
	ID        string    `db:"id"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	Password  string    `db:"password"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewUserInput はユーザー作成時の入力値。Passwordは平文。
type NewUserInput struct {
	Username string
	Email    string
	Password string
}

// UserPatch は部分更新の入力値。nilのフィールドは変更しない。
type UserPatch struct {
	Username *string
	Email    *string
	Password *string
}
