package model

import "time"

// DatabaseStatus はデータベースの稼働状況を表す。
type DatabaseStatus struct {
	Version         string
	MaxConnections  int
	OpenConnections int
}

// SystemStatus はステータスエンドポイントが返す集約結果。
type SystemStatus struct {
	UpdatedAt time.Time
	Database  DatabaseStatus
}
