package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/invsearch/internal/search"
)

type searchOptions struct {
	inventories int
	items       int
	suggest     bool
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var so searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search inventories and items",
		Long: `Search inventories and items with the same ranking as the HTTP API.

Plain words match titles, descriptions, custom IDs and field values, with
prefix expansion and a fuzzy fallback. Field syntax such as title:lamp or
customId:INV-0001 restricts a term to one field.`,
		Example: `  invsearch search red lamp
  invsearch search "customId:INV-00*" --items 50
  invsearch search lam --suggest
  invsearch search laptop --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, opts, strings.Join(args, " "), so)
		},
	}

	cmd.Flags().IntVar(&so.inventories, "inventories", -1, "Maximum inventories (default from config, 0 skips)")
	cmd.Flags().IntVarP(&so.items, "items", "n", -1, "Maximum items (default from config, 0 skips)")
	cmd.Flags().BoolVar(&so.suggest, "suggest", false, "Use the suggestion limits of the search box")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, opts *globalOptions, query string, so searchOptions) error {
	out, err := opts.writer(cmd)
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	slog.Debug("search_started", slog.String("query", query))

	var res *search.Result
	if so.suggest {
		res, err = a.search.Suggest(ctx, query)
	} else {
		res, err = a.search.Search(ctx, query, so.inventories, so.items)
	}
	if err != nil {
		return err
	}
	return out.SearchResult(res)
}
