package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"smartcart/internal/domain"
	"smartcart/internal/logger"
	"smartcart/internal/session"
	"smartcart/internal/summarizer"
)

// Deps are the services behind the search screen. Catalog and Assistant
// are optional; without them the detail pane shows search fields only and
// chat is disabled.
type Deps struct {
	Context     context.Context
	Controller  *session.Controller
	Catalog     domain.Catalog
	Assistant   domain.Assistant
	Summarizer  *summarizer.FrequencySummarizer
	ImageWeight float64
	Highlight   bool
	Logger      *logger.Logger
}

type focus int

const (
	focusQuery focus = iota
	focusImage
	focusChat
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusWarn
	statusError
)

type (
	searchDoneMsg struct{ err error }
	detailMsg     struct {
		id      int64
		details domain.ProductDetails
		err     error
	}
	answerMsg struct {
		id       int64
		question string
		answer   string
		err      error
	}
)

type chatLine struct {
	from string
	text string
	err  bool
}

// Model is the Bubble Tea model for the search screen.
type Model struct {
	ctx       context.Context
	ctrl      *session.Controller
	catalog   domain.Catalog
	assistant domain.Assistant
	summary   *summarizer.FrequencySummarizer
	log       *logger.Logger
	highlight bool

	keys    KeyMap
	help    help.Model
	query   textinput.Model
	image   textinput.Model
	chat    textinput.Model
	focus   focus
	detail  viewport.Model
	spinner spinner.Model
	list    *ResultList

	details  map[int64]domain.ProductDetails
	fetched  map[int64]bool
	chatOpen bool
	chatFor  int64
	chatLog  []chatLine

	weight     float64
	loading    bool
	hasMore    bool
	lastText   string
	status     string
	statusKind statusKind
	width      int
	height     int
	ready      bool
}

// New creates a new TUI model instance.
func New(d Deps) Model {
	if d.Context == nil {
		d.Context = context.Background()
	}
	if d.Summarizer == nil {
		d.Summarizer = summarizer.NewFrequencySummarizer(3)
	}

	q := textinput.New()
	q.Prompt = "search> "
	q.Placeholder = "Describe a product and press Enter"
	q.Focus()

	img := textinput.New()
	img.Prompt = "image>  "
	img.Placeholder = "Optional path to a JPG or PNG"

	chat := textinput.New()
	chat.Prompt = "ask> "
	chat.Placeholder = "Ask a question about this product"

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return Model{
		ctx:       d.Context,
		ctrl:      d.Controller,
		catalog:   d.Catalog,
		assistant: d.Assistant,
		summary:   d.Summarizer,
		log:       d.Logger.With("tui"),
		highlight: d.Highlight,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		query:     q,
		image:     img,
		chat:      chat,
		detail:    viewport.New(0, 0),
		spinner:   sp,
		list:      NewResultList(10),
		details:   map[int64]domain.ProductDetails{},
		fetched:   map[int64]bool{},
		weight:    clampWeight(d.ImageWeight),
		status:    "Type a query, attach an image, or both.",
	}
}

// Init initializes the model (text input cursor blink and spinner).
func (m Model) Init() tea.Cmd { return tea.Batch(textinput.Blink, m.spinner.Tick) }

// Update handles key, window and session events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case resetMsg:
		m.list.Clear()
		m.closeChat()
		m.hasMore = false
		m.refreshDetail()
		return m, nil
	case pageMsg:
		return m.applyPage(msg.page)
	case failMsg:
		m.applyFailure(msg.err)
		return m, nil
	case searchDoneMsg:
		m.loading = m.ctrl.Snapshot().Loading
		return m, nil
	case detailMsg:
		if msg.err != nil {
			m.log.Warnf("product %d details: %v", msg.id, msg.err)
		} else {
			m.details[msg.id] = msg.details
		}
		m.refreshDetail()
		return m, nil
	case answerMsg:
		m.applyAnswer(msg)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.End()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Submit):
		if m.focus == focusChat {
			return m.ask()
		}
		return m.submit()
	case key.Matches(msg, m.keys.NextField), key.Matches(msg, m.keys.PrevField):
		if m.focus == focusChat {
			return m, nil
		}
		if m.focus == focusQuery {
			return m, m.setFocus(focusImage)
		}
		return m, m.setFocus(focusQuery)
	case key.Matches(msg, m.keys.Up):
		m.list.MoveUp()
		return m, m.selectionChanged()
	case key.Matches(msg, m.keys.Down):
		m.list.MoveDown()
		return m, m.selectionChanged()
	case key.Matches(msg, m.keys.LoadMore):
		return m.loadMore()
	case key.Matches(msg, m.keys.WeightDown):
		if m.weightVisible() {
			m.weight = stepWeight(m.weight, -1)
		}
		return m, nil
	case key.Matches(msg, m.keys.WeightUp):
		if m.weightVisible() {
			m.weight = stepWeight(m.weight, 1)
		}
		return m, nil
	case key.Matches(msg, m.keys.Chat):
		return m.openChat()
	case key.Matches(msg, m.keys.Back):
		if m.chatOpen {
			m.closeChat()
			return m, m.setFocus(focusQuery)
		}
		m.status = ""
		return m, nil
	}
	return m.updateFocused(msg)
}

// submit starts a new search from the current inputs. Validation happens in
// the controller, which reports rejections through the renderer.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.query.Value())
	in := session.Input{Text: text, ImageWeight: m.weight}
	if path := strings.TrimSpace(m.image.Value()); path != "" {
		img, err := loadImage(path)
		if err != nil {
			m.setStatus(statusWarn, "Cannot read image: "+err.Error())
			return m, nil
		}
		in.Image = img
	}
	m.loading = true
	m.lastText = text
	ctrl, ctx := m.ctrl, m.ctx
	return m, func() tea.Msg { return searchDoneMsg{err: ctrl.StartSearch(ctx, in)} }
}

func (m Model) loadMore() (tea.Model, tea.Cmd) {
	snap := m.ctrl.Snapshot()
	switch {
	case !snap.Active:
		m.setStatus(statusWarn, "Search for something first.")
		return m, nil
	case snap.Loading:
		return m, nil
	case snap.Exhausted:
		m.setStatus(statusInfo, "No more results.")
		return m, nil
	}
	m.loading = true
	ctrl, ctx := m.ctrl, m.ctx
	return m, func() tea.Msg {
		_, err := ctrl.ExpandWindow(ctx)
		return searchDoneMsg{err: err}
	}
}

func (m Model) applyPage(page session.Page) (tea.Model, tea.Cmd) {
	m.loading = m.ctrl.Snapshot().Loading
	m.hasMore = page.HasMore
	m.list.SetItems(page.Results)
	switch {
	case page.Empty():
		m.setStatus(statusInfo, "No results found.")
	case page.HasMore:
		m.setStatus(statusInfo, fmt.Sprintf("%d results. Press ctrl+n for more.", len(page.Results)))
	default:
		m.setStatus(statusInfo, fmt.Sprintf("%d results, end of list.", len(page.Results)))
	}
	return m, m.selectionChanged()
}

func (m *Model) applyFailure(err error) {
	m.loading = m.ctrl.Snapshot().Loading
	var te *domain.TransportError
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		m.setStatus(statusWarn, err.Error())
	case errors.As(err, &te):
		m.setStatus(statusError, "Request failed: "+te.Error())
	default:
		m.setStatus(statusError, err.Error())
	}
}

func (m Model) openChat() (tea.Model, tea.Cmd) {
	p, ok := m.list.Selected()
	switch {
	case m.assistant == nil:
		m.setStatus(statusWarn, "Chat is not available with this backend.")
		return m, nil
	case !ok:
		m.setStatus(statusWarn, "Select a product to ask about.")
		return m, nil
	}
	if m.chatFor != p.ID {
		m.chatLog = nil
	}
	m.chatOpen = true
	m.chatFor = p.ID
	m.resize(m.width, m.height)
	return m, m.setFocus(focusChat)
}

func (m *Model) closeChat() {
	m.chatOpen = false
	m.chat.SetValue("")
	if m.focus == focusChat {
		m.setFocus(focusQuery)
	}
	m.resize(m.width, m.height)
}

func (m Model) ask() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.chat.Value())
	if question == "" {
		return m, nil
	}
	m.chat.SetValue("")
	m.chatLog = append(m.chatLog, chatLine{from: "you", text: question})
	assistant, ctx, id := m.assistant, m.ctx, m.chatFor
	return m, func() tea.Msg {
		answer, err := assistant.Ask(ctx, id, question)
		return answerMsg{id: id, question: question, answer: answer, err: err}
	}
}

func (m *Model) applyAnswer(msg answerMsg) {
	if msg.id != m.chatFor {
		return
	}
	var ae *domain.AssistantError
	switch {
	case msg.err == nil:
		m.chatLog = append(m.chatLog, chatLine{from: "assistant", text: msg.answer})
	case errors.As(msg.err, &ae):
		m.chatLog = append(m.chatLog, chatLine{from: "assistant", text: ae.Message, err: true})
	default:
		m.chatLog = append(m.chatLog, chatLine{from: "error", text: msg.err.Error(), err: true})
	}
}

// selectionChanged refreshes the detail pane and fetches the full record of
// the selected product the first time it is shown.
func (m *Model) selectionChanged() tea.Cmd {
	p, ok := m.list.Selected()
	if m.chatOpen && (!ok || p.ID != m.chatFor) {
		m.closeChat()
	}
	m.refreshDetail()
	if !ok || m.catalog == nil || m.fetched[p.ID] {
		return nil
	}
	m.fetched[p.ID] = true
	catalog, ctx, id := m.catalog, m.ctx, p.ID
	return func() tea.Msg {
		d, err := catalog.Product(ctx, id)
		return detailMsg{id: id, details: d, err: err}
	}
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusImage:
		m.image, cmd = m.image.Update(msg)
	case focusChat:
		m.chat, cmd = m.chat.Update(msg)
	default:
		m.query, cmd = m.query.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	m.query.Blur()
	m.image.Blur()
	m.chat.Blur()
	switch f {
	case focusImage:
		return m.image.Focus()
	case focusChat:
		return m.chat.Focus()
	default:
		return m.query.Focus()
	}
}

func (m *Model) setStatus(kind statusKind, text string) {
	m.statusKind = kind
	m.status = text
}

// weightVisible reports whether the weight control applies: only a query
// with both text and an image is hybrid.
func (m Model) weightVisible() bool {
	return strings.TrimSpace(m.query.Value()) != "" && strings.TrimSpace(m.image.Value()) != ""
}

func (m *Model) resize(width, height int) {
	if width == 0 || height == 0 {
		return
	}
	m.ready = true
	m.width, m.height = width, height
	m.help.Width = width

	// header, two input boxes, weight line, status, help
	reserved := 1 + 3 + 3 + 1 + 1 + 1
	if m.chatOpen {
		reserved += 8
	}
	_, fh := boxStyle.GetFrameSize()
	bodyHeight := max(3, height-reserved-fh)
	fw, _ := boxStyle.GetFrameSize()
	m.list.SetHeight(bodyHeight)
	m.detail.Width = max(20, width-m.listWidth()-2*fw)
	m.detail.Height = bodyHeight
	m.query.Width = max(10, width-fw-len(m.query.Prompt)-2)
	m.image.Width = m.query.Width
	m.refreshDetail()
}

func (m Model) listWidth() int { return max(30, m.width*2/5) }

func (m *Model) refreshDetail() {
	m.detail.SetContent(m.renderDetail())
	m.detail.GotoTop()
}

func (m Model) renderDetail() string {
	p, ok := m.list.Selected()
	if !ok {
		return mutedStyle.Render("Select a result to see its details.")
	}
	d, haveDetails := m.details[p.ID]
	if !haveDetails {
		d = domain.ProductDetails{Product: p}
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(p.Title))
	b.WriteString("\n")
	if p.Price != nil {
		b.WriteString(priceStyle.Render(fmt.Sprintf("$%.2f", *p.Price)))
		b.WriteString("  ")
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("#%d  %d/%d  distance=%.3f", p.ID, m.list.Cursor()+1, m.list.Len(), p.Distance)))
	b.WriteString("\n")
	if d.MainCategory != "" {
		b.WriteString(mutedStyle.Render(d.MainCategory))
		b.WriteString("\n")
	}
	if p.ProductURL != "" {
		b.WriteString(p.ProductURL + "\n")
	}
	if p.ImageURL != "" {
		b.WriteString(mutedStyle.Render("image: "+p.ImageURL) + "\n")
	}
	desc := d.Description
	if desc == "" {
		desc = p.Description
	}
	if desc != "" {
		b.WriteString("\n")
		if m.highlight && m.lastText != "" {
			b.WriteString(highlightBestSentence(desc, m.lastText))
		} else {
			b.WriteString(m.summary.Summarize(desc))
		}
		b.WriteString("\n")
	}
	if d.Features != "" {
		b.WriteString("\n" + titleStyle.Render("Features") + "\n" + d.Features + "\n")
	}
	return lipgloss.NewStyle().Width(max(10, m.detail.Width)).Render(b.String())
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("SmartCart Search") + mutedStyle.Render("  session "+shortID(m.ctrl.ID()))

	queryBox := m.inputBox(m.query.View(), m.focus == focusQuery)
	imageBox := m.inputBox(m.image.View(), m.focus == focusImage)
	weight := ""
	if m.weightVisible() {
		weight = fmt.Sprintf("image weight %.1f  text weight %.1f  (shift+←/→)", m.weight, 1-m.weight)
	}

	list := boxStyle.Copy().Width(m.listWidth()).Render(m.list.View(m.listWidth() - 4))
	detail := boxStyle.Render(m.detail.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, detail)

	parts := []string{header, queryBox, imageBox, mutedStyle.Render(weight), body}
	if m.chatOpen {
		parts = append(parts, m.chatView())
	}
	parts = append(parts, m.statusView(), m.help.View(m.keys))
	return strings.Join(parts, "\n")
}

func (m Model) inputBox(content string, focused bool) string {
	style := boxStyle.Copy()
	if focused {
		style = focusBoxStyle.Copy()
	}
	return style.Width(max(20, m.width-2)).Render(content)
}

func (m Model) chatView() string {
	lines := []string{titleStyle.Render("Ask about this product")}
	start := max(0, len(m.chatLog)-5)
	for _, l := range m.chatLog[start:] {
		text := l.from + ": " + l.text
		if l.err {
			text = warnStyle.Render(text)
		}
		lines = append(lines, text)
	}
	lines = append(lines, m.chat.View())
	return m.inputBox(strings.Join(lines, "\n"), m.focus == focusChat)
}

func (m Model) statusView() string {
	text := m.status
	switch m.statusKind {
	case statusWarn:
		text = warnStyle.Render("! " + text)
	case statusError:
		text = errorStyle.Render("x " + text)
	default:
		text = infoStyle.Render(text)
	}
	if m.loading {
		return m.spinner.View() + " Searching... " + text
	}
	return text
}

// highlightBestSentence renders text with the sentence that overlaps the
// query most in the highlight style.
func highlightBestSentence(text, query string) string {
	sentences, best := summarizer.BestSentence(text, query)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	if best >= 0 {
		sentences[best] = highlightStyle.Render(sentences[best])
	}
	return strings.Join(sentences, " ")
}

func loadImage(path string) (*domain.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return domain.NewImage(filepath.Base(path), data), nil
}

func clampWeight(w float64) float64 {
	if math.IsNaN(w) {
		return 0.5
	}
	return math.Min(1, math.Max(0, w))
}

// stepWeight moves w by one tenth in the given direction, snapping to tenths.
func stepWeight(w float64, dir int) float64 {
	return clampWeight(math.Round(w*10+float64(dir)) / 10)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
