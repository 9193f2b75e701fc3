package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcart/internal/domain"
	"smartcart/internal/session"
)

type searchCall struct {
	Modality domain.Modality
	Text     string
	Weights  domain.Weights
	K        int
}

// MockBackend implements domain.Backend for testing.
type MockBackend struct {
	mu         sync.Mutex
	calls      []searchCall
	SearchFunc func(c searchCall) ([]domain.Product, error)
}

func (b *MockBackend) search(c searchCall) ([]domain.Product, error) {
	b.mu.Lock()
	b.calls = append(b.calls, c)
	fn := b.SearchFunc
	b.mu.Unlock()
	if fn != nil {
		return fn(c)
	}
	return testProducts(c.K), nil
}

func (b *MockBackend) TextSearch(_ context.Context, text string, k int) ([]domain.Product, error) {
	return b.search(searchCall{Modality: domain.ModalityText, Text: text, K: k})
}

func (b *MockBackend) ImageSearch(_ context.Context, _ domain.Image, k int) ([]domain.Product, error) {
	return b.search(searchCall{Modality: domain.ModalityImage, K: k})
}

func (b *MockBackend) HybridSearch(_ context.Context, text string, _ domain.Image, w domain.Weights, k int) ([]domain.Product, error) {
	return b.search(searchCall{Modality: domain.ModalityHybrid, Text: text, Weights: w, K: k})
}

func (b *MockBackend) Calls() []searchCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]searchCall(nil), b.calls...)
}

// MockCatalog implements domain.Catalog and domain.Assistant for testing.
type MockCatalog struct {
	mu          sync.Mutex
	lookups     []int64
	ProductFunc func(id int64) (domain.ProductDetails, error)
	AskFunc     func(id int64, question string) (string, error)
}

func (c *MockCatalog) Product(_ context.Context, id int64) (domain.ProductDetails, error) {
	c.mu.Lock()
	c.lookups = append(c.lookups, id)
	c.mu.Unlock()
	if c.ProductFunc != nil {
		return c.ProductFunc(id)
	}
	return domain.ProductDetails{Product: domain.Product{ID: id}}, nil
}

func (c *MockCatalog) Ask(_ context.Context, id int64, question string) (string, error) {
	if c.AskFunc != nil {
		return c.AskFunc(id, question)
	}
	return "yes", nil
}

func (c *MockCatalog) Lookups() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.lookups...)
}

func testProducts(n int) []domain.Product {
	out := make([]domain.Product, n)
	for i := range out {
		price := float64(i + 1)
		out[i] = domain.Product{ID: int64(i + 1), Title: fmt.Sprintf("Product %d", i+1), Price: &price}
	}
	return out
}

// sink collects messages sent by the renderer.
type sink struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *sink) Send(msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *sink) drain() []tea.Msg {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.msgs
	s.msgs = nil
	return out
}

type harness struct {
	t       *testing.T
	m       Model
	sink    *sink
	backend *MockBackend
}

func newHarness(t *testing.T, backend *MockBackend, mutate func(*Deps)) *harness {
	t.Helper()
	r := NewRenderer()
	s := &sink{}
	r.Attach(s)
	d := Deps{
		Controller:  session.New(backend, r, session.Options{}),
		ImageWeight: 0.5,
	}
	if mutate != nil {
		mutate(&d)
	}
	h := &harness{t: t, m: New(d), sink: s, backend: backend}
	h.send(tea.WindowSizeMsg{Width: 120, Height: 40})
	return h
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	model, cmd := h.m.Update(msg)
	h.m = model.(Model)
	return cmd
}

func (h *harness) key(k tea.KeyType) tea.Cmd { return h.send(tea.KeyMsg{Type: k}) }

// exec runs a command produced by the model, delivers the renderer messages
// and the command's own result, and returns the commands those produced.
func (h *harness) exec(cmd tea.Cmd) []tea.Cmd {
	h.t.Helper()
	require.NotNil(h.t, cmd)
	msg := cmd()
	var next []tea.Cmd
	for _, ev := range h.sink.drain() {
		if c := h.send(ev); c != nil {
			next = append(next, c)
		}
	}
	if msg != nil {
		if c := h.send(msg); c != nil {
			next = append(next, c)
		}
	}
	return next
}

func (h *harness) search(text string) {
	h.t.Helper()
	h.m.query.SetValue(text)
	h.exec(h.key(tea.KeyEnter))
}

func writePNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "query.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o644))
	return path
}

func TestView_BeforeResize(t *testing.T) {
	m := New(Deps{Controller: session.New(&MockBackend{}, nil, session.Options{})})

	assert.Equal(t, "Loading...", m.View())
}

func TestSubmit_TextSearch(t *testing.T) {
	h := newHarness(t, &MockBackend{}, nil)

	h.search("red shoes")

	calls := h.backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.ModalityText, calls[0].Modality)
	assert.Equal(t, "red shoes", calls[0].Text)
	assert.Equal(t, 8, calls[0].K)
	assert.Equal(t, 8, h.m.list.Len())
	assert.False(t, h.m.loading)
	assert.True(t, h.m.hasMore)
	assert.Contains(t, h.m.status, "ctrl+n for more")
	assert.Contains(t, h.m.View(), "Product 1")
}

func TestSubmit_EmptyInputWarns(t *testing.T) {
	h := newHarness(t, &MockBackend{}, nil)

	h.search("   ")

	assert.Empty(t, h.backend.Calls())
	assert.Equal(t, statusWarn, h.m.statusKind)
	assert.Contains(t, h.m.status, "enter text or attach an image")
	assert.False(t, h.m.loading)
}

func TestSubmit_NoResults(t *testing.T) {
	backend := &MockBackend{SearchFunc: func(searchCall) ([]domain.Product, error) { return nil, nil }}
	h := newHarness(t, backend, nil)

	h.search("unicorn saddle")

	assert.Zero(t, h.m.list.Len())
	assert.Equal(t, "No results found.", h.m.status)
	assert.False(t, h.m.hasMore)
}

func TestSubmit_UnreadableImage(t *testing.T) {
	h := newHarness(t, &MockBackend{}, nil)
	h.m.image.SetValue(filepath.Join(t.TempDir(), "missing.png"))

	cmd := h.key(tea.KeyEnter)

	assert.Nil(t, cmd)
	assert.Equal(t, statusWarn, h.m.statusKind)
	assert.Contains(t, h.m.status, "Cannot read image")
	assert.Empty(t, h.backend.Calls())
}

func TestSubmit_ImageOnly(t *testing.T) {
	h := newHarness(t, &MockBackend{}, nil)
	h.m.image.SetValue(writePNG(t))

	h.exec(h.key(tea.KeyEnter))

	calls := h.backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.ModalityImage, calls[0].Modality)
}

func TestSubmit_HybridUsesAdjustedWeight(t *testing.T) {
	h := newHarness(t, &MockBackend{}, nil)
	h.m.image.SetValue(writePNG(t))
	h.m.query.SetValue("shoes")

	h.key(tea.KeyShiftRight)
	h.key(tea.KeyShiftRight)
	assert.InDelta(t, 0.7, h.m.weight, 1e-9)
	assert.Contains(t, h.m.View(), "image weight 0.7")

	h.exec(h.key(tea.KeyEnter))

	calls := h.backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.ModalityHybrid, calls[0].Modality)
	assert.InDelta(t, 0.7, calls[0].Weights.Image, 1e-9)
	assert.InDelta(t, 0.3, calls[0].Weights.Text, 1e-9)
}

func TestWeightControl_HiddenWithoutBothInputs(t *testing.T) {
	h := newHarness(t, &MockBackend{}, nil)
	h.m.query.SetValue("shoes")

	h.key(tea.KeyShiftRight)

	assert.InDelta(t, 0.5, h.m.weight, 1e-9)
	assert.NotContains(t, h.m.View(), "image weight")
}

func TestWeightControl_Clamps(t *testing.T) {
	assert.InDelta(t, 1.0, stepWeight(0.95, 1), 1e-9)
	assert.InDelta(t, 0.0, stepWeight(0.0, -1), 1e-9)
	assert.InDelta(t, 0.4, stepWeight(0.5, -1), 1e-9)
	assert.Zero(t, clampWeight(-3))
}

func TestLoadMore_ReplacesListAndKeepsSelection(t *testing.T) {
	backend := &MockBackend{SearchFunc: func(c searchCall) ([]domain.Product, error) {
		return testProducts(min(c.K, 15)), nil
	}}
	h := newHarness(t, backend, nil)
	h.search("red shoes")
	h.key(tea.KeyDown)
	h.key(tea.KeyDown)
	require.Equal(t, 2, h.m.list.Cursor())

	h.exec(h.key(tea.KeyCtrlN))

	calls := h.backend.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, 28, calls[1].K)
	assert.Equal(t, 15, h.m.list.Len())
	p, ok := h.m.list.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(3), p.ID)
	assert.False(t, h.m.hasMore)
	assert.Contains(t, h.m.status, "end of list")

	assert.Nil(t, h.key(tea.KeyCtrlN))
	assert.Equal(t, "No more results.", h.m.status)
	assert.Len(t, h.backend.Calls(), 2)
}

func TestLoadMore_WithoutSearch(t *testing.T) {
	h := newHarness(t, &MockBackend{}, nil)

	assert.Nil(t, h.key(tea.KeyCtrlN))
	assert.Equal(t, statusWarn, h.m.statusKind)
	assert.Empty(t, h.backend.Calls())
}

func TestLoadMore_FailureKeepsResults(t *testing.T) {
	backend := &MockBackend{SearchFunc: func(c searchCall) ([]domain.Product, error) {
		if c.K > 8 {
			return nil, &domain.TransportError{Op: "text search", StatusCode: 503}
		}
		return testProducts(c.K), nil
	}}
	h := newHarness(t, backend, nil)
	h.search("lamp")

	h.exec(h.key(tea.KeyCtrlN))

	assert.Equal(t, 8, h.m.list.Len())
	assert.Equal(t, statusError, h.m.statusKind)
	assert.Contains(t, h.m.status, "Request failed")
	assert.False(t, h.m.loading)
	snap := h.m.ctrl.Snapshot()
	assert.Equal(t, 8, snap.WindowSize)
	assert.True(t, snap.CanExpand())
}

func TestNewSearch_ClearsPreviousResults(t *testing.T) {
	h := newHarness(t, &MockBackend{}, nil)
	h.search("lamp")
	require.Equal(t, 8, h.m.list.Len())

	h.m.query.SetValue("desk")
	cmd := h.key(tea.KeyEnter)
	cmd()
	msgs := h.sink.drain()
	require.NotEmpty(t, msgs)
	h.send(msgs[0])

	assert.Zero(t, h.m.list.Len())
}

func TestDetails_FetchedOncePerProduct(t *testing.T) {
	cat := &MockCatalog{ProductFunc: func(id int64) (domain.ProductDetails, error) {
		return domain.ProductDetails{
			Product:  domain.Product{ID: id, Title: fmt.Sprintf("Product %d", id)},
			Features: "Waterproof seams",
		}, nil
	}}
	h := newHarness(t, &MockBackend{}, func(d *Deps) { d.Catalog = cat })
	h.m.query.SetValue("lamp")

	next := h.exec(h.key(tea.KeyEnter))
	require.Len(t, next, 1)
	h.exec(next[0])

	assert.Equal(t, []int64{1}, cat.Lookups())
	assert.Contains(t, h.m.renderDetail(), "Waterproof seams")

	h.exec(h.key(tea.KeyDown))
	assert.Nil(t, h.key(tea.KeyUp))
	assert.Equal(t, []int64{1, 2}, cat.Lookups())
}

func TestChat_AsksAboutSelectedProduct(t *testing.T) {
	var asked []int64
	cat := &MockCatalog{AskFunc: func(id int64, q string) (string, error) {
		asked = append(asked, id)
		if q == "battery?" {
			return "", &domain.AssistantError{Message: "No battery information."}
		}
		return "It is waterproof.", nil
	}}
	h := newHarness(t, &MockBackend{}, func(d *Deps) { d.Assistant = cat })
	h.search("boots")
	h.key(tea.KeyDown)

	h.key(tea.KeyCtrlA)
	require.True(t, h.m.chatOpen)
	assert.Equal(t, focusChat, h.m.focus)

	h.m.chat.SetValue("waterproof?")
	h.exec(h.key(tea.KeyEnter))
	h.m.chat.SetValue("battery?")
	h.exec(h.key(tea.KeyEnter))

	assert.Equal(t, []int64{2, 2}, asked)
	require.Len(t, h.m.chatLog, 4)
	assert.Equal(t, chatLine{from: "you", text: "waterproof?"}, h.m.chatLog[0])
	assert.Equal(t, chatLine{from: "assistant", text: "It is waterproof."}, h.m.chatLog[1])
	assert.Equal(t, chatLine{from: "assistant", text: "No battery information.", err: true}, h.m.chatLog[3])
	assert.Contains(t, h.m.View(), "Ask about this product")

	h.key(tea.KeyEsc)
	assert.False(t, h.m.chatOpen)
	assert.Equal(t, focusQuery, h.m.focus)
}

func TestChat_Unavailable(t *testing.T) {
	h := newHarness(t, &MockBackend{}, nil)
	h.search("boots")

	h.key(tea.KeyCtrlA)

	assert.False(t, h.m.chatOpen)
	assert.Equal(t, statusWarn, h.m.statusKind)
}

func TestChat_DropsAnswersForOtherProducts(t *testing.T) {
	h := newHarness(t, &MockBackend{}, func(d *Deps) { d.Assistant = &MockCatalog{} })
	h.search("boots")
	h.key(tea.KeyCtrlA)

	h.send(answerMsg{id: 99, answer: "stale"})

	assert.Empty(t, h.m.chatLog)
}

func TestFocus_TabCyclesInputs(t *testing.T) {
	h := newHarness(t, &MockBackend{}, nil)

	h.key(tea.KeyTab)
	assert.Equal(t, focusImage, h.m.focus)
	h.key(tea.KeyShiftTab)
	assert.Equal(t, focusQuery, h.m.focus)
}

func TestTyping_GoesToFocusedInput(t *testing.T) {
	h := newHarness(t, &MockBackend{}, nil)

	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("lamp")})
	h.key(tea.KeyTab)
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a.png")})

	assert.Equal(t, "lamp", h.m.query.Value())
	assert.Equal(t, "a.png", h.m.image.Value())
}

func TestQuit_EndsSession(t *testing.T) {
	h := newHarness(t, &MockBackend{}, nil)
	h.search("lamp")

	cmd := h.key(tea.KeyCtrlC)

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.False(t, h.m.ctrl.Snapshot().Active)
}

func TestHighlightBestSentence(t *testing.T) {
	got := highlightBestSentence("Made of leather. Waterproof for rain.", "waterproof boots")

	assert.Contains(t, got, "Made of leather.")
	assert.Contains(t, got, "Waterproof for rain.")
	assert.Equal(t, "", highlightBestSentence("  ", "x"))
}
