package coordinator

import (
	"sync"
	"time"

	"github.com/hitoshi/learnlog/internal/topic"
)

// Registry はセッションIDごとのCoordinatorを管理する。
// Coordinatorはセッションに1つだけ存在し、ログアウトで破棄される。
type Registry struct {
	topics      *topic.Service
	commitDelay time.Duration
	metrics     MetricsRecorder

	mu           sync.Mutex
	coordinators map[string]*Coordinator
}

// NewRegistry はRegistryを生成する。
func NewRegistry(topics *topic.Service, commitDelay time.Duration, metrics MetricsRecorder) *Registry {
	return &Registry{
		topics:       topics,
		commitDelay:  commitDelay,
		metrics:      metrics,
		coordinators: make(map[string]*Coordinator),
	}
}

// Get はセッションのCoordinatorを返す。存在しない場合は生成する。
// 生成直後のキャッシュは空であり、呼び出し側がRefreshする。
func (r *Registry) Get(sessionID, userID string) *Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.coordinators[sessionID]; ok {
		return c
	}
	c := New(userID, r.topics, r.commitDelay, r.metrics)
	r.coordinators[sessionID] = c
	return c
}

// Remove はセッションのCoordinatorを破棄する。
// 保留中のノートコミットはフラッシュせずに破棄される。
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	c, ok := r.coordinators[sessionID]
	delete(r.coordinators, sessionID)
	r.mu.Unlock()

	if ok {
		c.Close()
	}
}

// RemoveByUserID は指定ユーザーの全Coordinatorを破棄する。退会処理で使用する。
func (r *Registry) RemoveByUserID(userID string) {
	r.mu.Lock()
	var closing []*Coordinator
	for sessionID, c := range r.coordinators {
		if c.userID == userID {
			closing = append(closing, c)
			delete(r.coordinators, sessionID)
		}
	}
	r.mu.Unlock()

	for _, c := range closing {
		c.Close()
	}
}

// CloseAll は全Coordinatorを破棄する。サーバーのシャットダウンで使用する。
// 保留中のノートコミットは破棄前にフラッシュする。
func (r *Registry) CloseAll() {
	r.mu.Lock()
	closing := make([]*Coordinator, 0, len(r.coordinators))
	for _, c := range r.coordinators {
		closing = append(closing, c)
	}
	r.coordinators = make(map[string]*Coordinator)
	r.mu.Unlock()

	for _, c := range closing {
		c.FlushNotes()
		c.Close()
	}
}
