package main

import (
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/pipeline"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

type summary struct {
	Query      string
	Pages      int
	StopReason models.StopReason
	Report     *pipeline.Report
	Sink       string
	Elapsed    time.Duration
}

func renderSummary(out io.Writer, s summary) {
	t := newTable(out)
	t.SetTitle("Run summary")
	t.AppendHeader(table.Row{"Metric", "Value"})
	if s.Query != "" {
		t.AppendRow(table.Row{"Query", s.Query})
	}
	if s.StopReason != "" {
		t.AppendRow(table.Row{"Pages fetched", s.Pages})
		t.AppendRow(table.Row{"Stop reason", string(s.StopReason)})
	}
	if s.Report != nil {
		t.AppendRows([]table.Row{
			{"Raw records", s.Report.Raw},
			{"Unique", s.Report.Unique},
			{"Duplicates", s.Report.Duplicates},
			{"Persisted", s.Report.Persisted},
		})
	}
	t.AppendRow(table.Row{"Sink", s.Sink})
	t.AppendRow(table.Row{"Duration", s.Elapsed.Round(time.Millisecond)})
	t.Render()
}

func renderItems(out io.Writer, items []models.Item) {
	t := newTable(out)
	t.AppendHeader(table.Row{"#", "Item", "Name", "Seller", "Price", "Rating", "Reviews", "Ad"})
	for i, item := range items {
		price := "-"
		if item.Price != nil {
			price = strconv.FormatFloat(*item.Price, 'f', 2, 64)
		}
		t.AppendRow(table.Row{
			i + 1,
			orDash(item.ItemID),
			orDash(item.Name),
			orDash(item.Seller),
			price,
			item.Rating,
			item.ReviewCount,
			item.IsAd,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Total", len(items)})
	t.Render()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
