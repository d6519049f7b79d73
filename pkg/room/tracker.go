package room

import (
	"context"
	"sync"
)

// Tracker keeps one handle per live room session so the worker can drain
// them on shutdown. Registering the same room twice cancels the older
// session first.
type Tracker struct {
	mu    sync.Mutex
	live  map[string]*tracked
	group sync.WaitGroup
}

type tracked struct {
	cancel func()
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{live: make(map[string]*tracked)}
}

func (t *Tracker) Register(roomName string, cancel func()) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &tracked{cancel: cancel}

	t.mu.Lock()
	prev := t.live[roomName]
	t.live[roomName] = entry
	t.group.Add(1)
	t.mu.Unlock()

	if prev != nil {
		if prev.cancel != nil {
			prev.cancel()
		}
		t.drop(roomName, prev)
	}

	return func() { t.drop(roomName, entry) }
}

func (t *Tracker) drop(roomName string, entry *tracked) {
	entry.once.Do(func() {
		t.mu.Lock()
		if t.live[roomName] == entry {
			delete(t.live, roomName)
		}
		t.mu.Unlock()
		t.group.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

func (t *Tracker) CancelAll() int {
	if t == nil {
		return 0
	}

	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.live {
		if entry.cancel != nil {
			cancels = append(cancels, entry.cancel)
		}
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}

// Wait blocks until every registered session has unregistered, or ctx
// expires. Returns false on timeout.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.group.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
