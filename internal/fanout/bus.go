// Package fanout implements the Subscriber Fan-out (C6): a synchronous,
// snapshot-iterating broadcaster that delivers job_update, job_final_update,
// and notification messages to any number of attached/detached subscribers.
package fanout

import (
	"sync"

	"github.com/google/uuid"
	"github.com/molotovsingh/personal-backup-tool/internal/model"
)

// MessageType is the JSON discriminator every fanned-out message carries.
type MessageType string

const (
	TypeJobUpdate      MessageType = "job_update"
	TypeJobFinalUpdate MessageType = "job_final_update"
	TypeNotification   MessageType = "notification"
)

// NotificationLevel is the severity of a notification message.
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
	LevelSuccess NotificationLevel = "success"
)

// Message is the single wire shape for every event this bus carries; the
// Type field discriminates which other fields are meaningful, matching the
// JSON object the spec's two message shapes describe.
type Message struct {
	Type             MessageType        `json:"type"`
	JobID            string             `json:"job_id,omitempty"`
	Status           model.Status       `json:"status,omitempty"`
	Percent          int                `json:"percent,omitempty"`
	BytesTransferred int64              `json:"bytes_transferred,omitempty"`
	TotalBytes       int64              `json:"total_bytes,omitempty"`
	SpeedBytes       int64              `json:"speed_bytes,omitempty"`
	ETASeconds       int64              `json:"eta_seconds,omitempty"`
	Deletion         *model.Deletion    `json:"deletion,omitempty"`
	Level            NotificationLevel  `json:"level,omitempty"`
	Message          string             `json:"message,omitempty"`
	Details          string             `json:"details,omitempty"`
}

// JobUpdate builds a job_update (or, when final is true, job_final_update)
// message from a job's current progress.
func JobUpdate(job model.Job, final bool) Message {
	t := TypeJobUpdate
	if final {
		t = TypeJobFinalUpdate
	}
	return Message{
		Type:             t,
		JobID:            job.ID,
		Status:           job.Status,
		Percent:          job.Progress.Percent,
		BytesTransferred: job.Progress.BytesTransferred,
		TotalBytes:       job.Progress.TotalBytes,
		SpeedBytes:       job.Progress.SpeedBytes,
		ETASeconds:       job.Progress.ETASeconds,
		Deletion:         job.Progress.Deletion,
	}
}

// Notify builds a notification message.
func Notify(level NotificationLevel, message, details string) Message {
	return Message{Type: TypeNotification, Level: level, Message: message, Details: details}
}

// Subscriber is one attached listener. Filter, when non-nil, gates which
// messages are delivered; Events is the channel Publish writes to and the
// transport (C9's SSE handler) reads from.
type Subscriber struct {
	id     string
	Filter func(Message) bool
	Events chan Message
}

// Bus is the broadcaster: subscribers attach and detach freely, and
// Publish delivers synchronously to a snapshot of subscribers, evicting
// any whose channel is full rather than blocking the monitor loop on a
// slow reader (spec §4.6 — "drops subscribers whose send raises").
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	bufferSize  int
}

// New builds a Bus. bufferSize sizes each subscriber's channel.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{subscribers: make(map[string]*Subscriber), bufferSize: bufferSize}
}

// Subscribe attaches a new listener with an optional filter.
func (b *Bus) Subscribe(filter func(Message) bool) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		id:     uuid.NewString(),
		Filter: filter,
		Events: make(chan Message, b.bufferSize),
	}
	b.subscribers[sub.id] = sub
	return sub
}

// Unsubscribe detaches a listener and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub.id)
}

func (b *Bus) removeLocked(id string) {
	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// Publish delivers msg to every matching subscriber, synchronously, in the
// order Publish is called — the monitor loop is the sole caller, so
// per-job ordering into any one subscriber's channel follows call order.
// A subscriber whose channel is full is evicted rather than skipped: a
// stuck reader must not silently miss terminal transitions forever.
func (b *Bus) Publish(msg Message) {
	b.mu.RLock()
	snapshot := make([]*Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		snapshot = append(snapshot, sub)
	}
	b.mu.RUnlock()

	var stuck []string
	for _, sub := range snapshot {
		if sub.Filter != nil && !sub.Filter(msg) {
			continue
		}
		select {
		case sub.Events <- msg:
		default:
			stuck = append(stuck, sub.id)
		}
	}

	if len(stuck) == 0 {
		return
	}
	b.mu.Lock()
	for _, id := range stuck {
		b.removeLocked(id)
	}
	b.mu.Unlock()
}

// SubscriberCount reports the number of attached listeners.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
