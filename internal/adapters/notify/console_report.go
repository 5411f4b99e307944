package notify

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

// PrintReport imprime el estado persistido y los últimos ciclos.
func (c *Console) PrintReport(state domain.ReconciliationState, cycles []ports.CycleRecord) {
	fmt.Fprintf(c.out, "\n╔══════════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(c.out, "║                   RECONCILIATION REPORT                      ║\n")
	fmt.Fprintf(c.out, "╚══════════════════════════════════════════════════════════════╝\n\n")

	fmt.Fprintf(c.out, "── STATE (%d pairs) ──\n", len(state))
	if len(state) == 0 {
		fmt.Fprintln(c.out, "  (none)")
	} else {
		table := tablewriter.NewWriter(c.out)
		table.Header("Pair", "Signal", "Seq", "Source", "Observed", "Venue", "Open orders", "Status")
		for _, pair := range state.Pairs() {
			ps := state[pair]
			seq, source, observed := "-", "-", "-"
			if ps.Signal != nil {
				seq = fmt.Sprintf("%d", ps.Signal.SequenceID)
				source = dash(ps.Signal.SourceAccount)
				if !ps.Signal.ObservedAt.IsZero() {
					observed = ps.Signal.ObservedAt.UTC().Format("2006-01-02 15:04")
				}
			}
			orders := "-"
			if ps.Venue != nil && len(ps.Venue.OpenOrderIDs) > 0 {
				orders = truncate(strings.Join(ps.Venue.OpenOrderIDs, ","), 40)
			}
			table.Append(
				pair,
				signalLabel(ps.Signal),
				seq,
				source,
				observed,
				venueLabel(ps.Venue),
				orders,
				pairStatus(ps),
			)
		}
		table.Render()
	}

	fmt.Fprintf(c.out, "\n── RECENT CYCLES (%d) ──\n", len(cycles))
	if len(cycles) == 0 {
		fmt.Fprintln(c.out, "  (none)")
	} else {
		fmt.Fprintf(c.out, "  %-6s %-20s %8s %7s %10s %12s %7s\n",
			"Cycle", "Finished", "Signals", "Placed", "Cancelled", "CancelFail", "Errors")
		for _, r := range cycles {
			fmt.Fprintf(c.out, "  %-6d %-20s %8d %7d %10d %12d %7d\n",
				r.Cycle,
				r.FinishedAt.UTC().Format("2006-01-02 15:04:05"),
				r.SignalsMerged, r.OrdersPlaced, r.OrdersCancelled, r.CancelFailures, r.PairErrors)
		}
	}
	fmt.Fprintln(c.out)
}

// pairStatus resume si el venue coincide con la señal.
func pairStatus(ps domain.PairState) string {
	switch {
	case ps.Signal == nil:
		return "NO SIGNAL"
	case ps.Venue == nil:
		return "UNKNOWN VENUE"
	case ps.Signal.Position == ps.Venue.Position:
		return "SYNCED"
	default:
		return "DIVERGED"
	}
}
