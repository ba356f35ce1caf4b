// Package notify shows transient status messages, one at a time.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

const (
	// DisplayDuration is how long a notification stays before its exit starts.
	DisplayDuration = 3000 * time.Millisecond
	// ExitDuration is the length of the exit transition before removal.
	ExitDuration = 300 * time.Millisecond
)

type Notification struct {
	ID      string
	Message string
	Kind    Kind
}

// Presenter is the surface notifications are drawn on.
type Presenter interface {
	Show(n Notification)
	BeginExit(id string)
	Remove(id string)
}

// Timer is the subset of *time.Timer the channel needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Channel keeps at most one notification visible. A new notification removes
// the current one immediately; there is no queue.
type Channel struct {
	mu        sync.Mutex
	presenter Presenter
	logger    *zap.Logger
	after     AfterFunc
	current   *active
}

type active struct {
	n      Notification
	timers []Timer
}

func New(presenter Presenter, logger *zap.Logger) *Channel {
	return NewWithTimers(presenter, logger, realAfterFunc)
}

// NewWithTimers is New with a custom scheduler.
func NewWithTimers(presenter Presenter, logger *zap.Logger, after AfterFunc) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if after == nil {
		after = realAfterFunc
	}

	return &Channel{presenter: presenter, logger: logger, after: after}
}

func (c *Channel) Notify(message string, kind Kind) {
	n := Notification{ID: uuid.NewString(), Message: message, Kind: kind}

	c.mu.Lock()
	if c.current != nil {
		c.current.stop()
		c.presenter.Remove(c.current.n.ID)
		c.current = nil
	}

	c.presenter.Show(n)
	cur := &active{n: n}
	cur.timers = append(cur.timers, c.after(DisplayDuration, func() { c.beginExit(n.ID) }))
	c.current = cur
	c.mu.Unlock()

	c.log(n)
}

// Visible returns the notification currently on screen.
func (c *Channel) Visible() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return Notification{}, false
	}
	return c.current.n, true
}

func (c *Channel) beginExit(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.n.ID != id {
		return
	}

	c.presenter.BeginExit(id)
	c.current.timers = append(c.current.timers, c.after(ExitDuration, func() { c.remove(id) }))
}

func (c *Channel) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.n.ID != id {
		return
	}

	c.presenter.Remove(id)
	c.current = nil
}

func (a *active) stop() {
	for _, t := range a.timers {
		if t != nil {
			t.Stop()
		}
	}
}

func (c *Channel) log(n Notification) {
	fields := []zap.Field{zap.String("kind", string(n.Kind)), zap.String("notification_id", n.ID)}

	switch n.Kind {
	case KindError:
		c.logger.Error(n.Message, fields...)
	case KindWarning:
		c.logger.Warn(n.Message, fields...)
	default:
		c.logger.Info(n.Message, fields...)
	}
}
