package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/Sternrassler/event-aggregator/pkg/pagination"
	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	var (
		limit  int
		page   int
		totals []string
		output string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print how a page is split across sources",
		Example: `  events-gateway plan --limit 10 --page 2 --totals kudago=23,timepad=7
  events-gateway plan --limit 10 --page 2 --totals a=23 --totals b=7 -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := parseTotals(totals)
			if err != nil {
				return err
			}
			plan, err := pagination.NewPlan(limit, page, sources)
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), output, plan, sources, limit, page)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&page, "page", 1, "1-based page number")
	cmd.Flags().StringSliceVar(&totals, "totals", nil, "per-source totals as source=count, in registration order")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text|json)")
	_ = cmd.MarkFlagRequired("totals")

	return cmd
}

// parseTotals parses source=count pairs, keeping their order.
func parseTotals(pairs []string) ([]pagination.SourceTotal, error) {
	out := make([]pagination.SourceTotal, 0, len(pairs))
	for _, pair := range pairs {
		name, count, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid total %q, expected source=count", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil {
			return nil, fmt.Errorf("invalid count for %s: %w", name, err)
		}
		out = append(out, pagination.SourceTotal{Source: event.SourceID(name), Total: n})
	}
	return out, nil
}

type planOutput struct {
	Limit   int                `json:"limit"`
	Page    int                `json:"page"`
	Empty   bool               `json:"empty"`
	Sources []planSourceOutput `json:"sources"`
	Meta    event.PageMeta     `json:"meta"`
}

type planSourceOutput struct {
	Source event.SourceID `json:"source"`
	Total  int            `json:"total"`
	Skip   int            `json:"skip"`
	Take   int            `json:"take"`
}

func printPlan(w io.Writer, format string, plan pagination.Plan, totals []pagination.SourceTotal, limit, page int) error {
	sum := 0
	out := planOutput{Limit: limit, Page: page, Empty: plan.Empty}
	for _, t := range totals {
		s := plan.PerSource[t.Source]
		out.Sources = append(out.Sources, planSourceOutput{Source: t.Source, Total: t.Total, Skip: s.Skip, Take: s.Take})
		sum += t.Total
	}
	out.Meta = pagination.NewMeta(sum, limit, page)

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "text", "":
		fmt.Fprintf(w, "page %d of %d (limit %d, %d items)\n", page, out.Meta.TotalPages, limit, sum)
		for _, s := range out.Sources {
			fmt.Fprintf(w, "  %-12s total=%-6d skip=%-6d take=%d\n", s.Source, s.Total, s.Skip, s.Take)
		}
		if plan.Empty {
			fmt.Fprintln(w, "  past the end: no source is fetched")
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
