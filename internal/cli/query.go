package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"smartcart/internal/domain"
	"smartcart/internal/session"
)

type queryOptions struct {
	text      string
	imagePath string
	weight    float64
	more      int
	json      bool
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a one-shot search and print the results",
		Long: `Runs a single search and prints the ranked products.
Text only, image only and hybrid searches are chosen from the inputs:

Examples:
  # Text search
  smartcart query --text "red running shoes"

  # Hybrid search favouring the image, grown twice
  smartcart query --text "shoes" --image ./shoe.png --weight 0.7 --more 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.text, "text", "t", "", "Text query")
	cmd.Flags().StringVarP(&opts.imagePath, "image", "i", "", "Path to a JPG or PNG query image")
	cmd.Flags().Float64VarP(&opts.weight, "weight", "w", 0.5, "Image weight of a hybrid search (0.0-1.0); defaults to the configured weight")
	cmd.Flags().IntVarP(&opts.more, "more", "m", 0, "Number of times to load more results")
	cmd.Flags().BoolVarP(&opts.json, "json", "j", false, "Output results in JSON format")
	return cmd
}

// queryOutput is the JSON shape printed by query --json.
type queryOutput struct {
	Session    string           `json:"session"`
	Modality   domain.Modality  `json:"modality"`
	WindowSize int              `json:"window_size"`
	HasMore    bool             `json:"has_more"`
	Results    []domain.Product `json:"results"`
}

func runQuery(cmd *cobra.Command, root *rootOptions, opts *queryOptions) error {
	a, err := newApp(root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	in := session.Input{Text: opts.text, ImageWeight: a.cfg.Search.DefaultImageWeight}
	if cmd.Flags().Changed("weight") {
		in.ImageWeight = opts.weight
	}
	if opts.imagePath != "" {
		data, err := os.ReadFile(opts.imagePath)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		in.Image = domain.NewImage(filepath.Base(opts.imagePath), data)
	}

	var last session.Page
	ctrl := a.newSession(session.RendererFuncs{
		RenderFunc: func(p session.Page) { last = p },
	})
	defer ctrl.End()

	ctx := cmd.Context()
	if err := ctrl.StartSearch(ctx, in); err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	for i := 0; i < opts.more; i++ {
		dispatched, err := ctrl.ExpandWindow(ctx)
		if err != nil {
			return fmt.Errorf("load more failed: %w", err)
		}
		if !dispatched {
			break
		}
	}

	if opts.json {
		return outputQueryJSON(cmd, ctrl.ID(), last)
	}
	outputQueryTable(cmd, last)
	return nil
}

func outputQueryJSON(cmd *cobra.Command, id string, p session.Page) error {
	out := queryOutput{
		Session:    id,
		Modality:   p.Modality,
		WindowSize: p.WindowSize,
		HasMore:    p.HasMore,
		Results:    p.Results,
	}
	if out.Results == nil {
		out.Results = []domain.Product{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryTable(cmd *cobra.Command, p session.Page) {
	if p.Empty() {
		cmd.Println("No results found.")
		return
	}
	cmd.Printf("%s search, %d results:\n\n", p.Modality, len(p.Results))
	for i, r := range p.Results {
		price := "n/a"
		if r.Price != nil {
			price = fmt.Sprintf("%.2f", *r.Price)
		}
		cmd.Printf("  [%d] %s  #%d  %s  (%.3f)\n", i+1, r.Title, r.ID, price, r.Distance)
		if r.ProductURL != "" {
			cmd.Printf("      %s\n", r.ProductURL)
		}
	}
	cmd.Println()
	if p.HasMore {
		cmd.Println("More results are available; rerun with --more.")
	} else {
		cmd.Println("End of list.")
	}
}

func newAskCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <product-id> <question>",
		Short: "Ask a question about one product",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if _, err := fmt.Sscan(args[0], &id); err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}
			question := strings.TrimSpace(strings.Join(args[1:], " "))
			if question == "" {
				return errors.New("question must not be empty")
			}

			a, err := newApp(root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			answer, err := a.assistant.Ask(cmd.Context(), id, question)
			var ae *domain.AssistantError
			if errors.As(err, &ae) {
				cmd.Println(ae.Message)
				return nil
			}
			if err != nil {
				return fmt.Errorf("ask failed: %w", err)
			}
			cmd.Println(answer)
			return nil
		},
	}
}
