package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-listings/cache"
	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/lookup"
)

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Queries the catalog API for domains and category attributes.",
	}
	cmd.AddCommand(newLookupDomainsCmd(), newLookupAttributesCmd())
	return cmd
}

func newLookupClient(cfg *config.Config) *lookup.Client {
	return lookup.NewClient(cfg.APIBaseURL, cfg.LookupSite, cfg.LookupTimeout,
		lookup.WithCache(cache.New(cfg.MemcacheAddr, cfg.CacheSize, cfg.CacheTTL), cfg.CacheTTL))
}

func newLookupDomainsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "domains <query>",
		Short: "Suggests catalog domains and categories for a query.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newLookupClient(configFrom(cmd))
			matches := client.DomainDiscovery(cmd.Context(), args[0], limit)

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Domain", "Domain name", "Category", "Category name"})
			for _, m := range matches {
				t.AppendRow(table.Row{m.DomainID, m.DomainName, m.CategoryID, m.CategoryName})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", lookup.DefaultLimit, "Maximum suggestions")
	return cmd
}

func newLookupAttributesCmd() *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "attributes <category-id>...",
		Short: "Lists the attributes of one or more categories.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newLookupClient(configFrom(cmd))
			byCategory := client.ManyCategoryAttributes(cmd.Context(), args, delay)

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Category", "Attribute", "Name", "Type", "Values"})
			seen := make(map[string]bool, len(args))
			for _, id := range args {
				attrs, ok := byCategory[id]
				if !ok || seen[id] {
					continue
				}
				seen[id] = true
				if len(attrs) == 0 {
					t.AppendRow(table.Row{id, "-", "-", "-", 0})
					continue
				}
				for _, a := range attrs {
					t.AppendRow(table.Row{id, a.ID, a.Name, a.ValueType, len(a.Values)})
				}
			}
			t.AppendFooter(table.Row{"", "", "", "Categories", fmt.Sprint(len(seen))})
			t.Render()
			return nil
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", lookup.DefaultDelay, "Delay between category requests")
	return cmd
}
