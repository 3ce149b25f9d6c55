// cmd/repowiki/show.go
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/julianshen/repowiki/internal/cache"
	"github.com/julianshen/repowiki/internal/wiki"
)

func showCmd() *cobra.Command {
	var rawFlag bool

	cmd := &cobra.Command{
		Use:   "show <repository> [page-id]",
		Short: "Show a generated wiki page from the cache",
		Long: `Render a cached wiki page to the terminal. With no page-id the planned
pages are listed instead.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ref, err := parseRepoArg(args[0], platformFlag, tokenFlag)
			if err != nil {
				return err
			}

			gateway, closeCache, err := buildCache(cfg)
			if err != nil {
				return err
			}
			if gateway == nil {
				return fmt.Errorf("cache is disabled (cache.mode = off); nothing to show")
			}
			defer closeCache()

			key := cache.Key{
				Owner:         ref.Owner,
				Repo:          ref.Name(),
				Platform:      ref.Platform,
				Language:      cfg.Generator.Language,
				Comprehensive: cfg.Generator.Comprehensive,
			}
			entry, ok, err := gateway.Lookup(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("cache lookup: %w", err)
			}
			if !ok || entry.Empty() {
				return fmt.Errorf("no cached wiki for %s/%s: run generate first", ref.Owner, ref.Name())
			}

			if len(args) == 1 {
				listPages(cmd, entry)
				return nil
			}
			return showPage(cmd, entry, args[1], rawFlag)
		},
	}

	cmd.Flags().BoolVar(&rawFlag, "raw", false, "print raw Markdown without terminal styling")

	return cmd
}

func listPages(cmd *cobra.Command, entry *cache.Entry) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", entry.Structure.Title)
	for _, page := range entry.Structure.Pages {
		status := wiki.StatusPending
		if pc, ok := entry.Pages[page.ID]; ok {
			status = pc.Status
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %-10s %s\n", page.ID, status, page.Title)
	}
}

func showPage(cmd *cobra.Command, entry *cache.Entry, pageID string, raw bool) error {
	pc, ok := entry.Pages[pageID]
	if !ok || pc.Status != wiki.StatusDone {
		return fmt.Errorf("page %q has no generated content (known pages: %v)", pageID, knownPageIDs(entry))
	}

	if raw || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(cmd.OutOrStdout(), pc.Markdown)
		return nil
	}

	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 || width > 120 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("creating glamour renderer: %w", err)
	}
	out, err := r.Render(pc.Markdown)
	if err != nil {
		return fmt.Errorf("rendering page %q: %w", pageID, err)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func knownPageIDs(entry *cache.Entry) []string {
	ids := make([]string, 0, len(entry.Pages))
	for id := range entry.Pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
