package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// initialPingBackoff は疎通再試行の初回待機時間。
	initialPingBackoff = 500 * time.Millisecond
	// maxPingBackoff は疎通再試行の最大待機時間。
	maxPingBackoff = 5 * time.Second
)

// Pinger はDB疎通確認のインターフェース。*sqlx.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingBackoff は連続失敗回数に基づいて指数バックオフの待機時間を計算する。
// 初回500ms、2倍ずつ増加、最大5秒。
func PingBackoff(consecutiveFailures int) time.Duration {
	delay := initialPingBackoff
	for i := 0; i < consecutiveFailures; i++ {
		delay *= 2
		if delay > maxPingBackoff {
			return maxPingBackoff
		}
	}
	return delay
}

// WaitForDatabase はDBに疎通できるまでPingを繰り返す。
// 初回を含めて最大retries+1回試行し、すべて失敗した場合は最後のエラーを返す。
// 各試行にはattemptTimeoutを適用する。
func WaitForDatabase(ctx context.Context, db Pinger, retries int, attemptTimeout time.Duration) error {
	return waitForDatabase(ctx, db, retries, attemptTimeout, time.After)
}

func waitForDatabase(
	ctx context.Context,
	db Pinger,
	retries int,
	attemptTimeout time.Duration,
	after func(time.Duration) <-chan time.Time,
) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		lastErr = db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if attempt == retries {
			break
		}

		delay := PingBackoff(attempt)
		slog.Warn("データベースに接続できません。再試行します",
			slog.Int("attempt", attempt+1),
			slog.Duration("retry_in", delay),
			slog.String("error", lastErr.Error()),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for database canceled: %w", ctx.Err())
		case <-after(delay):
		}
	}
	return fmt.Errorf("database unreachable after %d attempts: %w", retries+1, lastErr)
}
