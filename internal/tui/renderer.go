package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"smartcart/internal/session"
)

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

type (
	resetMsg struct{}
	pageMsg  struct{ page session.Page }
	failMsg  struct{ err error }
)

// Renderer forwards session callbacks to the program as messages. It is
// created before the program exists and attached once it does; callbacks
// before Attach are dropped.
type Renderer struct {
	mu     sync.Mutex
	sender Sender
}

// NewRenderer creates an unattached renderer.
func NewRenderer() *Renderer { return &Renderer{} }

// Attach sets the destination of future callbacks.
func (r *Renderer) Attach(s Sender) {
	r.mu.Lock()
	r.sender = s
	r.mu.Unlock()
}

func (r *Renderer) send(msg tea.Msg) {
	r.mu.Lock()
	s := r.sender
	r.mu.Unlock()
	if s != nil {
		s.Send(msg)
	}
}

// Reset implements session.Renderer.
func (r *Renderer) Reset() { r.send(resetMsg{}) }

// Render implements session.Renderer.
func (r *Renderer) Render(page session.Page) { r.send(pageMsg{page: page}) }

// Fail implements session.Renderer.
func (r *Renderer) Fail(err error) { r.send(failMsg{err: err}) }
