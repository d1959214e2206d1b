// Package model はドメインモデルを定義する。
package model

import "time"

// Progress はトピックの学習進捗状態を表す。
type Progress string

const (
	// ProgressNotStarted は未着手の進捗状態。
	ProgressNotStarted Progress = "not_started"
	// ProgressInProgress は学習中の進捗状態。
	ProgressInProgress Progress = "in_progress"
	// ProgressDone は学習完了の進捗状態。
	ProgressDone Progress = "done"
)

// IsValid はProgressが定義済みの値かを検証する。
func (p Progress) IsValid() bool {
	switch p {
	case ProgressNotStarted, ProgressInProgress, ProgressDone:
		return true
	}
	return false
}

// DefaultCategory はカテゴリ未設定のトピックを集計する際のフォールバックバケット。
const DefaultCategory = "Random"

// Topic はユーザーが定義した学習トピックを表す。
// Resources と Notes はトピックドキュメントの一部として保存され、
// 更新は常にドキュメント全体の置き換え（last-write-wins）で行われる。
type Topic struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Category  string     `json:"category"`
	Progress  Progress   `json:"progress"`
	Resources []Resource `json:"resources"`
	Notes     string     `json:"notes"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Resource はトピックに添付された学習リソース（URL + 説明）を表す。
// 親トピックに排他的に所有され、他から参照されることはない。
type Resource struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// CategoryOrDefault はカテゴリ名を返す。未設定の場合はDefaultCategoryを返す。
func (t *Topic) CategoryOrDefault() string {
	if t.Category == "" {
		return DefaultCategory
	}
	return t.Category
}

// Clone はトピックの深いコピーを返す。
// コーディネータのキャッシュとストアへ送る値を分離するために使用する。
func (t *Topic) Clone() *Topic {
	c := *t
	if t.Resources != nil {
		c.Resources = make([]Resource, len(t.Resources))
		copy(c.Resources, t.Resources)
	}
	return &c
}
