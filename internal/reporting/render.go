package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Format selects how tables are rendered.
type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatMarkdown, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// Render writes the summary, open positions and trade history to w.
// CSV output carries the trade history only, one row per trade.
func Render(w io.Writer, r *Report, f Format) error {
	if f == FormatCSV {
		return write(w, TradesTable(r), f)
	}

	if f == FormatMarkdown {
		if _, err := fmt.Fprintf(w, "# Trading Report\n\nGenerated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)); err != nil {
			return err
		}
	}

	sections := []struct {
		title string
		tw    table.Writer
	}{
		{"Summary", SummaryTable(r)},
		{"Open Positions", PositionsTable(r)},
		{"Trade History", TradesTable(r)},
	}
	for _, s := range sections {
		if f == FormatMarkdown {
			if _, err := fmt.Fprintf(w, "## %s\n\n", s.title); err != nil {
				return err
			}
		} else {
			s.tw.SetTitle(s.title)
		}
		if err := write(w, s.tw, f); err != nil {
			return err
		}
	}
	return nil
}

func write(w io.Writer, tw table.Writer, f Format) error {
	var out string
	switch f {
	case FormatCSV:
		out = tw.RenderCSV()
	case FormatMarkdown:
		out = tw.RenderMarkdown()
	default:
		out = tw.Render()
	}
	_, err := fmt.Fprintf(w, "%s\n\n", out)
	return err
}

// SummaryTable renders the summary as metric/value rows.
func SummaryTable(r *Report) table.Writer {
	s := r.Summary
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Total Trades", s.TotalTrades},
		{"Wins", s.Wins},
		{"Losses", s.Losses},
		{"Win Rate", fmt.Sprintf("%.2f%%", s.WinRate*100)},
		{"Cumulative Profit (SOL)", s.CumulativeProfit.StringFixed(4)},
		{"Mean Profit", fmt.Sprintf("%.4f", s.ProfitMean)},
		{"Median Profit", fmt.Sprintf("%.4f", s.ProfitMedian)},
		{"P10 / P90", fmt.Sprintf("%.4f / %.4f", s.ProfitP10, s.ProfitP90)},
		{"Best / Worst", s.BestTrade.StringFixed(4) + " / " + s.WorstTrade.StringFixed(4)},
		{"Max Drawdown", s.MaxDrawdown.StringFixed(4)},
		{"Max Consecutive Losses", s.MaxConsecutiveLosses},
		{"Open Positions", s.OpenPositions},
		{"Open Exposure (SOL)", s.OpenExposure.StringFixed(4)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	return t
}

// PositionsTable renders open positions with their change since entry.
func PositionsTable(r *Report) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Entry", "Current", "Change", "Size", "Opened"})
	for _, p := range r.Positions {
		t.AppendRow(table.Row{
			p.ID,
			p.Name,
			p.EntryValuation.String(),
			p.Valuation.String(),
			p.Change().String(),
			p.EntrySize.String(),
			p.OpenedAt.Format(time.RFC3339),
		})
	}
	return t
}

// TradesTable renders the trade history in seq order.
func TradesTable(r *Report) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Seq", "Trade ID", "Position", "Name", "Entry", "Exit", "Size", "Profit", "Outcome", "Manual", "Closed", "Receipt"})
	for _, tr := range r.Trades {
		t.AppendRow(table.Row{
			tr.Seq,
			tr.TradeID,
			tr.PositionID,
			tr.Name,
			tr.EntryValuation.String(),
			tr.ExitValuation.String(),
			tr.EntrySize.String(),
			tr.Profit.String(),
			string(tr.Outcome),
			tr.Manual,
			tr.ClosedAt.Format(time.RFC3339),
			tr.Receipt,
		})
	}
	return t
}
