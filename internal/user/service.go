// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/userbase/internal/metrics"
	"github.com/hitoshi/userbase/internal/model"
	"github.com/hitoshi/userbase/internal/repository"
	"github.com/hitoshi/userbase/internal/security"
)

// Service はユーザー管理のサービス層。
// 作成・取得・部分更新と、username/emailの一意性検証を提供する。
//
// 一意性の事前チェックは利用者向けのエラーを早く返すための経路であり、
// 最終的な保証はusersテーブルのユニークインデックスが担う。
// チェック後に競合した場合もリポジトリがDuplicateFieldErrorに変換する。
type Service struct {
	userRepo repository.UserRepository
	hasher   security.PasswordHasherService
	metrics  metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	hasher security.PasswordHasherService,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		metrics:  collector,
	}
}

// Create はユーザーを作成する。
// email、usernameの順に重複を確認し、どちらも未使用の場合のみパスワードをハッシュ化して保存する。
func (s *Service) Create(ctx context.Context, input model.NewUserInput) (*model.User, error) {
	if err := s.ensureEmailAvailable(ctx, input.Email, ""); err != nil {
		return nil, err
	}
	if err := s.ensureUsernameAvailable(ctx, input.Username, ""); err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, s.hashError(err)
	}

	created, err := s.userRepo.Create(ctx, &model.User{
		ID:       uuid.New().String(),
		Username: input.Username,
		Email:    input.Email,
		Password: hashed,
	})
	if err != nil {
		return nil, s.recordDuplicate(err)
	}

	s.metrics.RecordUserCreated()
	slog.Info("ユーザーを作成しました",
		slog.String("user_id", created.ID),
		slog.String("username", created.Username),
	)

	return created, nil
}

// FindOneByUsername はusernameを大文字小文字を区別せずに検索する。
// 見つからない場合はmodel.NotFoundErrorを返す。
func (s *Service) FindOneByUsername(ctx context.Context, username string) (*model.User, error) {
	found, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if found == nil {
		return nil, &model.NotFoundError{Username: username}
	}
	return found, nil
}

// Update はusernameで特定したユーザーを部分更新する。
// パッチに含まれないフィールドは変更しない。空のパッチでもupdated_atは更新される。
// username/emailの変更は、現在値と異なる場合のみ自分以外の行との重複を確認する。
// 大文字小文字だけの変更（例: "alice" → "Alice"）は自分自身との一致なので許可する。
func (s *Service) Update(ctx context.Context, username string, patch model.UserPatch) (*model.User, error) {
	current, err := s.FindOneByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if patch.Username != nil && *patch.Username != current.Username {
		if err := s.ensureUsernameAvailable(ctx, *patch.Username, current.ID); err != nil {
			return nil, err
		}
	}
	if patch.Email != nil && *patch.Email != current.Email {
		if err := s.ensureEmailAvailable(ctx, *patch.Email, current.ID); err != nil {
			return nil, err
		}
	}

	if patch.Password != nil {
		hashed, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, s.hashError(err)
		}
		patch.Password = &hashed
	}

	updated, err := s.userRepo.Update(ctx, current.ID, patch)
	if err != nil {
		return nil, s.recordDuplicate(err)
	}
	if updated == nil {
		// 検索後に行が消えた場合
		return nil, &model.NotFoundError{Username: username}
	}

	s.metrics.RecordUserUpdated()
	slog.Info("ユーザーを更新しました",
		slog.String("user_id", updated.ID),
		slog.Bool("username_changed", patch.Username != nil),
		slog.Bool("email_changed", patch.Email != nil),
		slog.Bool("password_changed", patch.Password != nil),
	)

	return updated, nil
}

func (s *Service) ensureEmailAvailable(ctx context.Context, email, excludeID string) error {
	exists, err := s.userRepo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return fmt.Errorf("メールアドレスの重複確認に失敗しました: %w", err)
	}
	if exists {
		s.metrics.RecordDuplicateRejected(model.FieldEmail)
		return &model.DuplicateFieldError{Field: model.FieldEmail}
	}
	return nil
}

func (s *Service) ensureUsernameAvailable(ctx context.Context, username, excludeID string) error {
	exists, err := s.userRepo.ExistsByUsername(ctx, username, excludeID)
	if err != nil {
		return fmt.Errorf("ユーザー名の重複確認に失敗しました: %w", err)
	}
	if exists {
		s.metrics.RecordDuplicateRejected(model.FieldUsername)
		return &model.DuplicateFieldError{Field: model.FieldUsername}
	}
	return nil
}

// recordDuplicate は書き込み時のユニーク制約違反を記録し、そのまま返す。
func (s *Service) recordDuplicate(err error) error {
	var dupErr *model.DuplicateFieldError
	if errors.As(err, &dupErr) {
		s.metrics.RecordDuplicateRejected(dupErr.Field)
		slog.Warn("書き込み時にユニーク制約違反を検出しました",
			slog.String("field", dupErr.Field),
		)
		return err
	}
	return fmt.Errorf("ユーザーの保存に失敗しました: %w", err)
}

func (s *Service) hashError(err error) error {
	if errors.Is(err, security.ErrPasswordTooLong) {
		return model.NewPasswordTooLongError()
	}
	return fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
}
