package shared

import "sync"

// Flash kinds understood by the layout template.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// FlashMessage represents a one-time notification.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Flashes queues notifications for the next rendered page. The console
// serves one operator, so one queue per process is enough.
type Flashes struct {
	mu    sync.Mutex
	queue []FlashMessage
}

// Add queues a flash message.
func (f *Flashes) Add(kind, message string) {
	f.mu.Lock()
	f.queue = append(f.queue, FlashMessage{Kind: kind, Message: message})
	f.mu.Unlock()
}

// Pop retrieves and clears the oldest flash message.
func (f *Flashes) Pop() *FlashMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return &msg
}

// Drain returns and clears every queued message.
func (f *Flashes) Drain() []FlashMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.queue
	f.queue = nil
	return out
}
