package engine

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
)

const dryRunBanner = `
╔══════════════════════════════════════════════════════════════╗
║         *** DRY RUN - NO REAL TRADES EXECUTED ***            ║
╚══════════════════════════════════════════════════════════════╝`

var hundred = decimal.NewFromInt(100)

// RenderReport writes the human-readable run report: portfolio summary,
// per-symbol allocation targets, and the trades that were simulated or
// submitted. Dry runs are framed by the banner so log scrollback never
// reads as live activity.
func RenderReport(w io.Writer, report *contracts.RunReport) {
	dryRun := report.Mode == contracts.RunModeDryRun
	if dryRun {
		fmt.Fprintln(w, dryRunBanner)
	}

	if report.Summary == nil {
		fmt.Fprintf(w, "  Run %s ended: %s\n", report.RunID, report.Outcome)
		if report.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", report.Error)
		}
		if dryRun {
			fmt.Fprintln(w, dryRunBanner)
		}
		return
	}
	summary := report.Summary

	fmt.Fprintf(w, "%s\n", strings.Repeat("=", 60))
	fmt.Fprintln(w, "  Portfolio Summary")
	fmt.Fprintf(w, "%s\n", strings.Repeat("=", 60))
	fmt.Fprintf(w, "  Total Value:     $%12s\n", summary.TotalValue.StringFixed(2))
	fmt.Fprintf(w, "  Cash Balance:    $%12s\n", summary.CashBalance.StringFixed(2))
	fmt.Fprintf(w, "  Positions Value: $%12s\n", summary.PositionsValue.StringFixed(2))
	fmt.Fprintf(w, "  Holdings:        %13d\n", summary.NumHoldings)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %-12s %8s %9s %7s %6s %5s %10s\n",
		"Symbol", "Target%", "Current%", "Drift%", "Action", "Qty", "Value")
	fmt.Fprintf(w, "  %s %s %s %s %s %s %s\n",
		dashes(12), dashes(8), dashes(9), dashes(7), dashes(6), dashes(5), dashes(10))
	for i := range summary.Targets {
		t := &summary.Targets[i]
		fmt.Fprintf(w, "  %-12s %7s%% %8s%% %6s%% %6s %5d $%9s\n",
			t.Symbol,
			t.TargetWeight.Mul(hundred).StringFixed(1),
			t.CurrentWeight.Mul(hundred).StringFixed(1),
			t.DriftPct.StringFixed(1),
			t.Action,
			t.TradeQuantity,
			t.TradeValue.StringFixed(2))
	}
	fmt.Fprintln(w)

	if len(report.Outcomes) > 0 {
		renderTrades(w, report)
	} else {
		fmt.Fprintln(w, "  No trades needed - portfolio is within drift threshold.")
	}

	if dryRun {
		fmt.Fprintln(w, dryRunBanner)
	}
}

// renderTrades lists the accepted fills and the cash movement they
// imply. Rejected submissions never reached the book and stay out of
// the table; the execution summary in the report still counts them.
func renderTrades(w io.Writer, report *contracts.RunReport) {
	label := "Submitted Trades:"
	if report.Mode == contracts.RunModeDryRun {
		label = "Simulated Trades:"
	}
	fmt.Fprintf(w, "  %s\n", label)
	fmt.Fprintf(w, "  %-6s %-12s %5s %10s %12s\n", "Action", "Symbol", "Qty", "Price", "Value")
	fmt.Fprintf(w, "  %s %s %s %s %s\n", dashes(6), dashes(12), dashes(5), dashes(10), dashes(12))

	totalSold := decimal.Zero
	totalBought := decimal.Zero
	for i := range report.Outcomes {
		o := &report.Outcomes[i]
		if !o.Accepted() {
			continue
		}
		value := o.LimitPrice.Mul(decimal.NewFromInt(o.Quantity))
		fmt.Fprintf(w, "  %-6s %-12s %5d $%9s $%11s\n",
			strings.ToUpper(string(o.Side)), o.Symbol, o.Quantity,
			o.LimitPrice.StringFixed(2), value.StringFixed(2))
		if o.Side == contracts.OrderSideSell {
			totalSold = totalSold.Add(value)
		} else {
			totalBought = totalBought.Add(value)
		}
	}

	fmt.Fprintf(w, "\n  Total Sold:    $%12s\n", totalSold.StringFixed(2))
	fmt.Fprintf(w, "  Total Bought:  $%12s\n", totalBought.StringFixed(2))
	if report.Summary != nil {
		cashAfter := report.Summary.CashBalance.Add(totalSold).Sub(totalBought)
		fmt.Fprintf(w, "  Cash After:    $%12s\n", cashAfter.StringFixed(2))
	}
}

// RenderPicks writes the selection preview table used by the picks
// command: rank, symbol, score, and the factors behind it.
func RenderPicks(w io.Writer, picks []contracts.SecurityMetrics) {
	if len(picks) == 0 {
		fmt.Fprintln(w, "  No picks: every universe symbol was filtered out.")
		return
	}

	fmt.Fprintf(w, "  %-4s %-12s %-24s %7s %8s %8s %7s\n",
		"Rank", "Symbol", "Name", "Score", "Ret90d%", "Ret30d%", "Vol%")
	fmt.Fprintf(w, "  %s %s %s %s %s %s %s\n",
		dashes(4), dashes(12), dashes(24), dashes(7), dashes(8), dashes(8), dashes(7))
	for i := range picks {
		p := &picks[i]
		name := p.Name
		if len(name) > 24 {
			name = name[:24]
		}
		fmt.Fprintf(w, "  %-4d %-12s %-24s %7.3f %7.1f%% %7.1f%% %6.1f%%\n",
			i+1, p.Symbol, name, p.Score,
			p.Return90D*100, p.Return30D*100, p.Volatility*100)
	}
}

func dashes(n int) string {
	return strings.Repeat("-", n)
}
