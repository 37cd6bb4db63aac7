package model

// Migration は適用済み、または未適用のマイグレーション1件を表す。
type Migration struct {
	// Name は "<timestamp>_<identifier>" 形式の一意な名前。
	Name string
	// Path は埋め込みソース内のupファイルのパス。
	Path string
	// Timestamp は適用順序のキー（エポックからのミリ秒）。
	Timestamp int64
}
