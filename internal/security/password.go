// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// ProductionBcryptCost は本番相当環境で使用するbcryptのコスト。
	ProductionBcryptCost = 14
	// DevelopmentBcryptCost は本番以外で使用するbcryptのコスト。テストを高速化するため最小値。
	DevelopmentBcryptCost = bcrypt.MinCost
	// maxPasswordBytes はbcryptが参照する入力の最大バイト数。
	maxPasswordBytes = 72
)

// ErrPasswordTooLong はbcryptの入力上限（72バイト）を超えるパスワードを表す。
// 切り詰めは行わず、常に拒否する。
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// ErrMalformedHash は保存済みハッシュがbcrypt形式として解釈できないことを表す。
var ErrMalformedHash = errors.New("malformed password hash")

// PasswordHasherService はパスワードの一方向ハッシュ化と照合のインターフェース。
type PasswordHasherService interface {
	// Hash は平文パスワードをソルト付きでハッシュ化する。
	Hash(plaintext string) (string, error)
	// Verify は平文パスワードが保存済みハッシュと一致するかを返す。
	// 不一致はエラーにならず、ハッシュが不正な形式の場合のみエラーを返す。
	Verify(plaintext, hashed string) (bool, error)
}

// PasswordHasher はbcryptによるPasswordHasherServiceの実装。
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher は指定されたコストのPasswordHasherを生成する。
// 範囲外のコストはbcryptの下限・上限に丸める。
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost はこのハッシャーが使用するコストを返す。
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash は平文パスワードをbcryptでハッシュ化する。
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify は平文パスワードが保存済みハッシュと一致するかを返す。
func (h *PasswordHasher) Verify(plaintext, hashed string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
}

// compile-time interface check
var _ PasswordHasherService = (*PasswordHasher)(nil)
