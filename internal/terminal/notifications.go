package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spigell/resume-tuner/internal/notify"
)

var _ notify.Presenter = (*Notifications)(nil)

// Notifications prints notifications when shown. Exit and removal only update
// the visible set.
type Notifications struct {
	mu      sync.Mutex
	out     io.Writer
	visible map[string]bool
}

func NewNotifications(out io.Writer) *Notifications {
	return &Notifications{out: out, visible: map[string]bool{}}
}

func (p *Notifications) Show(n notify.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.visible[n.ID] = true
	style, ok := kindStyles[string(n.Kind)]
	if !ok {
		style = kindStyles[string(notify.KindInfo)]
	}
	fmt.Fprintf(p.out, "%s %s\n", style.Render(strings.ToUpper(string(n.Kind))), n.Message)
}

func (p *Notifications) BeginExit(string) {}

func (p *Notifications) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.visible, id)
}

// Visible reports how many notifications are on screen.
func (p *Notifications) Visible() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.visible)
}
