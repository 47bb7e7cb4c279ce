package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

// brief is the YAML document accepted by create --from.
//
// A brief carrying an external_id imports content that is already live on
// the publishing target: the work item starts as published and can be
// refreshed later.
type brief struct {
	Title       string `yaml:"title"`
	Keyword     string `yaml:"keyword"`
	Owner       string `yaml:"owner"`
	ExternalID  string `yaml:"external_id"`
	ExternalURL string `yaml:"external_url"`
}

func loadBrief(path string) (*brief, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open brief: %w", err)
	}
	defer f.Close()

	var b brief
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to parse brief %s: %w", path, err)
	}
	return &b, nil
}

func (b *brief) workItem() (*workitem.WorkItem, error) {
	b.Title = strings.TrimSpace(b.Title)
	b.Keyword = strings.TrimSpace(b.Keyword)
	if b.Title == "" || b.Keyword == "" {
		return nil, errors.New("title and keyword are required")
	}
	item := &workitem.WorkItem{
		Title:   b.Title,
		Keyword: b.Keyword,
		OwnerID: strings.TrimSpace(b.Owner),
		Status:  status.StatusDraft,
	}
	if b.ExternalID != "" {
		item.ExternalID = b.ExternalID
		item.ExternalURL = b.ExternalURL
		item.Status = status.StatusPublished
	}
	return item, nil
}

func newCreateCommand(app *App) *cobra.Command {
	var (
		b    brief
		from string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a work item",
		Long: `Create a new work item in draft.

Fields come from flags, from a YAML brief (--from) or both; flags win.
A brief may carry external_id and external_url to import an article that
is already published.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := brief{}
			if from != "" {
				loaded, err := loadBrief(from)
				if err != nil {
					return fail(app, err)
				}
				in = *loaded
			}
			if cmd.Flags().Changed("title") {
				in.Title = b.Title
			}
			if cmd.Flags().Changed("keyword") {
				in.Keyword = b.Keyword
			}
			if cmd.Flags().Changed("owner") {
				in.Owner = b.Owner
			}

			item, err := in.workItem()
			if err != nil {
				return fail(app, err)
			}
			created, err := app.Items.Create(cmd.Context(), item)
			if err != nil {
				return fail(app, err)
			}
			app.Printer.Success("Created %s (%s)", created.ID, created.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&b.Title, "title", "", "working title")
	cmd.Flags().StringVar(&b.Keyword, "keyword", "", "target keyword")
	cmd.Flags().StringVar(&b.Owner, "owner", "", "owning site or tenant")
	cmd.Flags().StringVar(&from, "from", "", "YAML brief to read fields from")
	return cmd
}

func newListCommand(app *App) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := app.Items.List(cmd.Context())
			if err != nil {
				return fail(app, err)
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				if owner != "" && item.OwnerID != owner {
					continue
				}
				rows = append(rows, []string{
					item.ID,
					item.Title,
					status.Label(item.Status),
					app.Printer.ProgressBar(status.Progress(item.Status)),
				})
			}
			app.Printer.Table([]string{"ID", "Title", "Status", "Progress"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only list this owner's work items")
	return cmd
}
