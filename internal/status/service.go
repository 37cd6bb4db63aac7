// Package status はシステム稼働状況の集約を提供する。
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/userbase/internal/model"
	"github.com/hitoshi/userbase/internal/repository"
)

// Service はデータベースの稼働状況を集約する。
type Service struct {
	statusRepo repository.StatusRepository
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(statusRepo repository.StatusRepository) *Service {
	return &Service{
		statusRepo: statusRepo,
		now:        time.Now,
	}
}

// Current は現在時刻とデータベースの状態を返す。
func (s *Service) Current(ctx context.Context) (*model.SystemStatus, error) {
	db, err := s.statusRepo.DatabaseStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("データベース状態の取得に失敗しました: %w", err)
	}

	return &model.SystemStatus{
		UpdatedAt: s.now().UTC(),
		Database:  *db,
	}, nil
}
