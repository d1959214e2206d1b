// Package debounce は遅延コミットのスケジューリングを提供する。
//
// 連続した編集を1回のコミットにまとめるための仕組みで、
// 保留中のタスクは常に最大1つ。新しいスケジュールは前の保留タスクを
// キャンセルして置き換える。暗黙のグローバルタイマーではなく、
// 明示的にキャンセル可能なタスクとして保持する。
package debounce

import (
	"sync"
	"time"
)

// Committer は遅延実行タスクを1つだけ保持するスケジューラ。
type Committer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	gen     uint64 // スケジュール世代。古いタイマー発火を無効化する
	closed  bool
}

// NewCommitter は指定した遅延時間のCommitterを生成する。
func NewCommitter(delay time.Duration) *Committer {
	return &Committer{delay: delay}
}

// Schedule はfnを遅延実行として予約する。
// 保留中のタスクがあればキャンセルして置き換えるため、
// 連続呼び出しでは最後のfnだけが1回実行される。
func (c *Committer) Schedule(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if c.timer != nil {
		c.timer.Stop()
	}

	c.gen++
	gen := c.gen
	c.pending = fn
	c.timer = time.AfterFunc(c.delay, func() {
		c.fire(gen)
	})
}

// fire はタイマー発火時にタスクを実行する。
// 発火と再スケジュールの競合はgenの比較で解決する。
func (c *Committer) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.pending == nil {
		c.mu.Unlock()
		return
	}
	run := c.pending
	c.pending = nil
	c.timer = nil
	c.mu.Unlock()

	run()
}

// Flush は保留中のタスクを即時実行する。保留がなければ何もしない。
// 実行はFlush呼び出し元のゴルーチンで同期的に行われる。
func (c *Committer) Flush() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	run := c.pending
	c.pending = nil
	c.mu.Unlock()

	if run != nil {
		run()
	}
}

// Cancel は保留中のタスクを実行せずに破棄する。
func (c *Committer) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.pending = nil
}

// Pending は保留中のタスクがあるかを返す。
func (c *Committer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Close は保留中のタスクを破棄し、以後のスケジュールを受け付けなくする。
// セッション破棄時に呼び、破棄後のコミット発火を防ぐ。
func (c *Committer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.pending = nil
}
