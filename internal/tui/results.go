package tui

import (
	"fmt"
	"strings"

	"smartcart/internal/domain"
)

// ResultList is the navigable list of products on screen. Selection is
// tracked by product ID so it survives full-list replacements.
type ResultList struct {
	items    []domain.Product
	selected int64
	cursor   int
	height   int
}

// NewResultList creates an empty list showing up to height rows.
func NewResultList(height int) *ResultList {
	return &ResultList{height: max(1, height)}
}

// SetItems replaces the list. The selection stays on the same product when
// it is still present, otherwise it moves to the first item.
func (l *ResultList) SetItems(items []domain.Product) {
	l.items = items
	l.cursor = 0
	for i, p := range items {
		if p.ID == l.selected {
			l.cursor = i
			break
		}
	}
	if len(items) > 0 {
		l.selected = items[l.cursor].ID
	}
}

// Clear empties the list and forgets the selection.
func (l *ResultList) Clear() {
	l.items = nil
	l.cursor = 0
	l.selected = 0
}

// Items returns the displayed products.
func (l *ResultList) Items() []domain.Product { return l.items }

// Len returns the number of products.
func (l *ResultList) Len() int { return len(l.items) }

// Selected returns the product under the cursor.
func (l *ResultList) Selected() (domain.Product, bool) {
	if len(l.items) == 0 {
		return domain.Product{}, false
	}
	return l.items[l.cursor], true
}

// Cursor returns the index of the selected product.
func (l *ResultList) Cursor() int { return l.cursor }

// MoveUp moves the selection up, wrapping around.
func (l *ResultList) MoveUp() { l.move(-1) }

// MoveDown moves the selection down, wrapping around.
func (l *ResultList) MoveDown() { l.move(1) }

func (l *ResultList) move(delta int) {
	if len(l.items) == 0 {
		return
	}
	l.cursor = (l.cursor + delta + len(l.items)) % len(l.items)
	l.selected = l.items[l.cursor].ID
}

// SetHeight sets the number of visible rows.
func (l *ResultList) SetHeight(h int) { l.height = max(1, h) }

// View renders the visible window of rows around the cursor.
func (l *ResultList) View(width int) string {
	if len(l.items) == 0 {
		return mutedStyle.Render("No results yet.")
	}
	start := 0
	if l.cursor >= l.height {
		start = l.cursor - l.height + 1
	}
	end := min(start+l.height, len(l.items))

	maxTitle := max(10, width-14)
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		p := l.items[i]
		title := truncate(p.Title, maxTitle)
		if title == "" {
			title = "(untitled)"
		}
		price := formatPrice(p.Price)
		if i == l.cursor {
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("> %-*s %s", maxTitle, title, price)))
			continue
		}
		lines = append(lines, fmt.Sprintf("  %-*s ", maxTitle, title)+priceStyle.Render(price))
	}
	return strings.Join(lines, "\n")
}

func formatPrice(p *float64) string {
	if p == nil {
		return "     n/a"
	}
	return fmt.Sprintf("%8.2f", *p)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
