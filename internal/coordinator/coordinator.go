// Package coordinator はセッションごとのアプリケーション状態を管理する。
//
// トピックのキャッシュ、カテゴリフィルタ、表示ビュー、選択中トピック、
// ノートの遅延コミットをひとつのCoordinatorに集約する。
// キャッシュの更新は常にストアの確認後に行い、ストアが失敗した場合の
// ローカル状態は変化しない。
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/learnlog/internal/debounce"
	"github.com/hitoshi/learnlog/internal/model"
	"github.com/hitoshi/learnlog/internal/topic"
)

// View は表示中の画面を表す。
type View string

const (
	// ViewList はトピック一覧ビュー。
	ViewList View = "list"
	// ViewDetail はトピック詳細ビュー。
	ViewDetail View = "detail"
)

// commitTimeout は遅延コミット発火時のストア書き込みタイムアウト。
// 発火時点で元リクエストのコンテキストは終了しているため独立して設定する。
const commitTimeout = 10 * time.Second

// MetricsRecorder はノートコミットの計測フック。
type MetricsRecorder interface {
	NotesCommitIssued()
	NotesCommitSuppressed()
	NotesCommitFailed()
}

// nopMetrics は計測を行わないMetricsRecorder。
type nopMetrics struct{}

func (nopMetrics) NotesCommitIssued()     {}
func (nopMetrics) NotesCommitSuppressed() {}
func (nopMetrics) NotesCommitFailed()     {}

// State はCoordinatorの状態スナップショット。
type State struct {
	View           View           `json:"view"`
	Filter         string         `json:"filter"`
	SelectedID     string         `json:"selected_id,omitempty"`
	Topics         []*model.Topic `json:"topics"`
	CategoryCounts map[string]int `json:"category_counts"`
	PendingCommit  bool           `json:"pending_commit"`
}

// Coordinator は1セッション分の状態を保持する。
// すべての公開メソッドは内部ロックで直列化される。
type Coordinator struct {
	userID    string
	topics    *topic.Service
	committer *debounce.Committer
	metrics   MetricsRecorder

	mu           sync.Mutex
	loaded       bool
	cached       []*model.Topic
	filter       string
	view         View
	selectedID   string
	pendingNotes map[string]string // topicID -> 未コミットのノート本文
}

// New はCoordinatorを生成する。metricsはnilでもよい。
func New(userID string, topics *topic.Service, commitDelay time.Duration, metrics MetricsRecorder) *Coordinator {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Coordinator{
		userID:       userID,
		topics:       topics,
		committer:    debounce.NewCommitter(commitDelay),
		metrics:      metrics,
		view:         ViewList,
		pendingNotes: make(map[string]string),
	}
}

// Refresh はストアからトピック一覧を読み直し、キャッシュを置き換える。
func (c *Coordinator) Refresh(ctx context.Context) error {
	topics, err := c.topics.List(ctx, c.userID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = topics
	c.loaded = true
	// 選択中トピックが消えていた場合は一覧へ戻す
	if c.selectedID != "" && c.findCached(c.selectedID) == nil {
		c.selectedID = ""
		c.view = ViewList
	}
	return nil
}

// EnsureFresh はキャッシュが一度も読み込まれていない場合のみRefreshする。
// セッション復元後の最初の操作でキャッシュを確実に用意するために使う。
func (c *Coordinator) EnsureFresh(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()

	if loaded {
		return nil
	}
	return c.Refresh(ctx)
}

// Topic は指定トピックのコピーを返す。未コミットのノートが重ねられる。
func (c *Coordinator) Topic(topicID string) (*model.Topic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached := c.findCached(topicID)
	if cached == nil {
		return nil, model.NewTopicNotFoundError(topicID)
	}
	clone := cached.Clone()
	if pending, ok := c.pendingNotes[topicID]; ok {
		clone.Notes = pending
	}
	return clone, nil
}

// Snapshot は現在の状態のコピーを返す。
// Topicsにはカテゴリフィルタが適用され、未コミットのノートが重ねられる。
// CategoryCountsはフィルタに関わらず全トピックを集計する。
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make(map[string]int)
	topics := make([]*model.Topic, 0, len(c.cached))
	for _, t := range c.cached {
		counts[t.CategoryOrDefault()]++
		if c.filter != "" && t.CategoryOrDefault() != c.filter {
			continue
		}
		clone := t.Clone()
		if pending, ok := c.pendingNotes[t.ID]; ok {
			clone.Notes = pending
		}
		topics = append(topics, clone)
	}

	return State{
		View:           c.view,
		Filter:         c.filter,
		SelectedID:     c.selectedID,
		Topics:         topics,
		CategoryCounts: counts,
		PendingCommit:  len(c.pendingNotes) > 0,
	}
}

// SetFilter はカテゴリフィルタを設定する。空文字で解除。
func (c *Coordinator) SetFilter(category string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = category
}

// Select はトピックを選択して詳細ビューへ遷移する。
// 指定IDがキャッシュに存在しない場合は一覧ビューへ戻る。エラーにはしない。
func (c *Coordinator) Select(topicID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.findCached(topicID) == nil {
		c.selectedID = ""
		c.view = ViewList
		return
	}
	c.selectedID = topicID
	c.view = ViewDetail
}

// Back は一覧ビューへ戻る。選択は解除される。
func (c *Coordinator) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectedID = ""
	c.view = ViewList
}

// CreateTopic はトピックを作成し、ストア確認後にキャッシュへ追加する。
func (c *Coordinator) CreateTopic(ctx context.Context, name, category string) (*model.Topic, error) {
	created, err := c.topics.Create(ctx, c.userID, name, category)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cached = append(c.cached, created)
	c.mu.Unlock()
	return created.Clone(), nil
}

// UpdateProgress は進捗状態を更新し、ストア確認後にキャッシュを置き換える。
func (c *Coordinator) UpdateProgress(ctx context.Context, topicID string, progress model.Progress) (*model.Topic, error) {
	updated, err := c.topics.UpdateProgress(ctx, c.userID, topicID, progress)
	if err != nil {
		return nil, err
	}
	c.replaceCached(updated)
	return updated.Clone(), nil
}

// Rename はトピック名とカテゴリを更新し、ストア確認後にキャッシュを置き換える。
func (c *Coordinator) Rename(ctx context.Context, topicID, name, category string) (*model.Topic, error) {
	updated, err := c.topics.Rename(ctx, c.userID, topicID, name, category)
	if err != nil {
		return nil, err
	}
	c.replaceCached(updated)
	return updated.Clone(), nil
}

// AddResource はリソースを追加し、ストア確認後にキャッシュを置き換える。
func (c *Coordinator) AddResource(ctx context.Context, topicID, url, description string) (*model.Topic, error) {
	updated, err := c.topics.AddResource(ctx, c.userID, topicID, url, description)
	if err != nil {
		return nil, err
	}
	c.replaceCached(updated)
	return updated.Clone(), nil
}

// DeleteResource はリソースを削除し、ストア確認後にキャッシュを置き換える。
func (c *Coordinator) DeleteResource(ctx context.Context, topicID, resourceID string) (*model.Topic, error) {
	updated, err := c.topics.DeleteResource(ctx, c.userID, topicID, resourceID)
	if err != nil {
		return nil, err
	}
	c.replaceCached(updated)
	return updated.Clone(), nil
}

// ImportResources は複数リソースをまとめて追加し、キャッシュを置き換える。
func (c *Coordinator) ImportResources(ctx context.Context, topicID string, resources []model.Resource) (*model.Topic, error) {
	updated, err := c.topics.AppendResources(ctx, c.userID, topicID, resources)
	if err != nil {
		return nil, err
	}
	c.replaceCached(updated)
	return updated.Clone(), nil
}

// DeleteTopic はトピックを削除する。削除成功後、キャッシュと保留ノートを
// 破棄し、削除したトピックを表示中だった場合は一覧ビューへ戻す。
func (c *Coordinator) DeleteTopic(ctx context.Context, topicID string) error {
	if err := c.topics.Delete(ctx, c.userID, topicID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := make([]*model.Topic, 0, len(c.cached))
	for _, t := range c.cached {
		if t.ID != topicID {
			kept = append(kept, t)
		}
	}
	c.cached = kept
	delete(c.pendingNotes, topicID)

	if c.selectedID == topicID {
		c.selectedID = ""
		c.view = ViewList
	}
	return nil
}

// EditNotes はノート編集を受け付け、遅延コミットを予約する。
// 既存の保留コミットは破棄され、最後の編集だけがコミットされる。
// 編集値が既にコミット済みの値と等しく、かつ保留もない場合は何も予約しない。
func (c *Coordinator) EditNotes(topicID, notes string) error {
	c.mu.Lock()
	cached := c.findCached(topicID)
	if cached == nil {
		c.mu.Unlock()
		return model.NewTopicNotFoundError(topicID)
	}

	if notes == cached.Notes {
		// コミット済みの値へ戻った。保留があれば取り消すだけでよい
		delete(c.pendingNotes, topicID)
		pendingLeft := len(c.pendingNotes) > 0
		c.mu.Unlock()
		if !pendingLeft {
			c.committer.Cancel()
		}
		c.metrics.NotesCommitSuppressed()
		return nil
	}

	c.pendingNotes[topicID] = notes
	c.mu.Unlock()

	c.committer.Schedule(func() {
		c.commitPendingNotes()
	})
	return nil
}

// FlushNotes は保留中のノートコミットを即時実行する。
func (c *Coordinator) FlushNotes() {
	c.committer.Flush()
}

// commitPendingNotes は保留中の全ノートをストアへ書き込む。
// コミット済みの値と等しい保留は抑制する。失敗した保留は保持され、
// 次回の編集またはフラッシュで再試行される。
func (c *Coordinator) commitPendingNotes() {
	c.mu.Lock()
	pending := make(map[string]string, len(c.pendingNotes))
	for id, notes := range c.pendingNotes {
		pending[id] = notes
	}
	c.mu.Unlock()

	for topicID, notes := range pending {
		c.commitNotes(topicID, notes)
	}
}

// commitNotes は1トピック分のノートをストアへ書き込む。
func (c *Coordinator) commitNotes(topicID, notes string) {
	c.mu.Lock()
	cached := c.findCached(topicID)
	if cached == nil {
		// 削除済みトピックへの保留は破棄
		delete(c.pendingNotes, topicID)
		c.mu.Unlock()
		return
	}
	if notes == cached.Notes {
		delete(c.pendingNotes, topicID)
		c.mu.Unlock()
		c.metrics.NotesCommitSuppressed()
		return
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()

	updated, err := c.topics.UpdateNotes(ctx, c.userID, topicID, notes)
	if err != nil {
		// 保留値は保持したまま次回の再試行に委ねる
		c.metrics.NotesCommitFailed()
		slog.Warn("failed to commit notes",
			slog.String("topic_id", topicID),
			slog.String("error", err.Error()),
		)
		return
	}

	c.mu.Lock()
	c.replaceCachedLocked(updated)
	// コミット中にさらに編集されていなければ保留を解消する
	if current, ok := c.pendingNotes[topicID]; ok && current == notes {
		delete(c.pendingNotes, topicID)
	}
	c.mu.Unlock()

	c.metrics.NotesCommitIssued()
}

// PendingNotes は未コミットの保留があるかを返す。
func (c *Coordinator) PendingNotes() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pendingNotes) > 0
}

// Close は保留中のコミットを破棄し、以後のスケジュールを止める。
// ログアウトやセッション破棄で呼ぶ。
func (c *Coordinator) Close() {
	c.committer.Close()
	c.mu.Lock()
	c.pendingNotes = make(map[string]string)
	c.mu.Unlock()
}

// findCached はキャッシュからトピックを探す。要ロック。
func (c *Coordinator) findCached(topicID string) *model.Topic {
	for _, t := range c.cached {
		if t.ID == topicID {
			return t
		}
	}
	return nil
}

// replaceCached はキャッシュ内のトピックを置き換える。
func (c *Coordinator) replaceCached(updated *model.Topic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaceCachedLocked(updated)
}

// replaceCachedLocked はキャッシュ内のトピックを置き換える。要ロック。
func (c *Coordinator) replaceCachedLocked(updated *model.Topic) {
	for i, t := range c.cached {
		if t.ID == updated.ID {
			c.cached[i] = updated
			return
		}
	}
}
