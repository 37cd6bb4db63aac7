// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, user, migration, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest               = "INVALID_REQUEST"
	ErrCodeValidationFailed             = "VALIDATION_FAILED"
	ErrCodePasswordTooLong              = "PASSWORD_TOO_LONG"
	ErrCodeDuplicateUsername            = "DUPLICATE_USERNAME"
	ErrCodeDuplicateEmail               = "DUPLICATE_EMAIL"
	ErrCodeUserNotFound                 = "USER_NOT_FOUND"
	ErrCodeRouteNotFound                = "ROUTE_NOT_FOUND"
	ErrCodeMethodNotAllowed             = "METHOD_NOT_ALLOWED"
	ErrCodeMigrationRollbackUnsupported = "MIGRATION_ROLLBACK_UNSUPPORTED"
	ErrCodeRateLimited                  = "RATE_LIMITED"
	ErrCodeInternal                     = "INTERNAL_ERROR"
)

// ユニーク制約の対象フィールド名
const (
	FieldUsername = "username"
	FieldEmail    = "email"
)

// ErrAmbiguousResult は一意であるべき検索で複数行がヒットしたことを表す。
// ユニーク制約が守られていれば発生しない内部エラー。
var ErrAmbiguousResult = errors.New("multiple rows matched a unique lookup")

// DuplicateFieldError はusernameまたはemailが既に登録済みであることを表す。
type DuplicateFieldError struct {
	Field string
}

// Error はerrorインターフェースを実装する。
func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("%s is already registered", e.Field)
}

// APIError はクライアント向けのエラー表現に変換する。
func (e *DuplicateFieldError) APIError() *APIError {
	if e.Field == FieldEmail {
		return &APIError{
			Code:     ErrCodeDuplicateEmail,
			Message:  "このメールアドレスは既に登録されています。",
			Category: "validation",
			Action:   "別のメールアドレスを指定してください。",
		}
	}
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  "このユーザー名は既に登録されています。",
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NotFoundError は指定されたユーザーが存在しないことを表す。
type NotFoundError struct {
	Username string
}

// Error はerrorインターフェースを実装する。
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user not found: %s", e.Username)
}

// APIError はクライアント向けのエラー表現に変換する。
func (e *NotFoundError) APIError() *APIError {
	return NewUserNotFoundError()
}

// StorageError はQuery Executorで発生した想定外の失敗を表す。
// 元のエラーは内部診断用に保持し、クライアントには返さない。
type StorageError struct {
	Op  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "指定されたユーザー名はシステムに存在しません。",
		Category: "user",
		Action:   "存在するユーザー名で再度お試しください。",
	}
}

// NewRouteNotFoundError は未定義のエンドポイントに対するエラーを生成する。
func NewRouteNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRouteNotFound,
		Message:  "指定されたエンドポイントは存在しません。",
		Category: "validation",
		Action:   "URLを確認してから再度お試しください。",
	}
}

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してから再度お試しください。",
	}
}

// NewPasswordTooLongError はパスワード長の上限超過エラーを生成する。
func NewPasswordTooLongError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooLong,
		Message:  fmt.Sprintf("パスワードは%dバイト以内で指定してください。", MaxPasswordLength),
		Category: "validation",
		Action:   "より短いパスワードを指定してください。",
	}
}

// NewMethodNotAllowedError は未対応のHTTPメソッドに対するエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  "このエンドポイントでは指定されたメソッドを利用できません。",
		Category: "validation",
		Action:   "有効なメソッドで再度お試しください。",
	}
}

// NewMigrationRollbackUnsupportedError はマイグレーションのロールバック要求に対するエラーを生成する。
func NewMigrationRollbackUnsupportedError() *APIError {
	return &APIError{
		Code:     ErrCodeMigrationRollbackUnsupported,
		Message:  "マイグレーションのロールバックはサポートされていません。",
		Category: "migration",
		Action:   "スキーマを戻す場合は新しいマイグレーションを追加してください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーの統一表現を生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "予期しないエラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
