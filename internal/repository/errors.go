package repository

import (
	"errors"

	"github.com/lib/pq"

	"github.com/hitoshi/userbase/internal/model"
)

// uniqueViolation はPostgreSQLのunique_violationのSQLSTATE。
const uniqueViolation = pq.ErrorCode("23505")

// usersテーブルのユニークインデックス名。マイグレーションの定義と一致させる。
const (
	usernameUniqueIndex = "users_username_lower_key"
	emailUniqueIndex    = "users_email_lower_key"
)

// translateUniqueViolation はユニーク制約違反をmodel.DuplicateFieldErrorに変換する。
// 対象外のエラーはそのまま返す。
func translateUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}

	switch pqErr.Constraint {
	case usernameUniqueIndex:
		return &model.DuplicateFieldError{Field: model.FieldUsername}
	case emailUniqueIndex:
		return &model.DuplicateFieldError{Field: model.FieldEmail}
	default:
		return err
	}
}

// storageError は想定外のDBエラーをmodel.StorageErrorで包む。
// ドメインエラーはそのまま返す。
func storageError(op string, err error) error {
	var dupErr *model.DuplicateFieldError
	if errors.As(err, &dupErr) {
		return err
	}
	return &model.StorageError{Op: op, Err: err}
}
