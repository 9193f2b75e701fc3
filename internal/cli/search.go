package cli

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"smartcart/internal/summarizer"
	"smartcart/internal/tui"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search",
		Short: "Open the interactive search screen",
		Long: `Opens the terminal search screen. Type a query, attach an image path,
or both; press ctrl+n to load more results and ctrl+a to ask about the
selected product.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd, opts)
		},
	}
}

func runSearch(cmd *cobra.Command, opts *rootOptions) error {
	// The screen owns the terminal; logs only go to a configured file.
	a, err := newApp(opts, io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	r := tui.NewRenderer()
	ctrl := a.newSession(r)
	defer ctrl.End()

	m := tui.New(tui.Deps{
		Context:     ctx,
		Controller:  ctrl,
		Catalog:     a.catalog,
		Assistant:   a.assistant,
		Summarizer:  summarizer.NewFrequencySummarizer(3),
		ImageWeight: a.cfg.Search.DefaultImageWeight,
		Highlight:   a.cfg.UI.Highlight,
		Logger:      a.log,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	r.Attach(p)

	a.log.Infof("session %s started", ctrl.ID())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("search screen: %w", err)
	}
	return nil
}
