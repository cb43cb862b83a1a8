// Package notify delivers user-facing success and failure notices.
//
// A [Notifier] must never block the caller: the coordinator emits notices while
// it mutates board state.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Level is the severity of a [Notice].
type Level int

const (
	Success Level = iota
	Info
	Failure
)

// String returns the human-readable name of the level.
func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Info:
		return "info"
	case Failure:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is a single notification.
type Notice struct {
	Level   Level
	Message string
	Err     error
	At      time.Time
}

func (n Notice) String() string {
	if n.Err != nil {
		return fmt.Sprintf("%s: %v", n.Message, n.Err)
	}
	return n.Message
}

// Notifier receives notices.
type Notifier interface {
	Notify(Notice)
}

// Func adapts a function to [Notifier].
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

// Succeeded builds a success notice.
func Succeeded(format string, args ...any) Notice {
	return Notice{Level: Success, Message: fmt.Sprintf(format, args...), At: time.Now()}
}

// Failed builds a failure notice wrapping err.
func Failed(err error, format string, args ...any) Notice {
	return Notice{Level: Failure, Message: fmt.Sprintf(format, args...), Err: err, At: time.Now()}
}

// Infof builds an informational notice.
func Infof(format string, args ...any) Notice {
	return Notice{Level: Info, Message: fmt.Sprintf(format, args...), At: time.Now()}
}

// Channel forwards notices to a buffered channel, dropping them when it is full.
type Channel struct {
	C chan Notice
}

// NewChannel creates a [Channel] with the given buffer size.
func NewChannel(size int) *Channel {
	return &Channel{C: make(chan Notice, size)}
}

func (c *Channel) Notify(n Notice) {
	select {
	case c.C <- n:
	default:
	}
}

// Logger writes notices to a [log.Logger].
type Logger struct {
	L *log.Logger
}

func (l Logger) Notify(n Notice) {
	switch n.Level {
	case Failure:
		l.L.Error(n.Message, "error", n.Err)
	default:
		l.L.Info(n.Message, "level", n.Level)
	}
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(n)
		}
	}
}

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Count returns how many recorded notices have the level.
func (r *Recorder) Count(l Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.notices {
		if x.Level == l {
			n++
		}
	}
	return n
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}
