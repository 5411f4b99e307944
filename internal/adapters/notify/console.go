package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
	now   func() time.Time
}

// NewConsole crea un notificador que escribe a stdout. table=false imprime
// una línea compacta por ciclo.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table, now: time.Now}
}

// NotifyCycle imprime el resultado del ciclo en el modo configurado.
func (c *Console) NotifyCycle(_ context.Context, cycle int, rows []ports.PairReport) error {
	if len(rows) == 0 {
		fmt.Fprintf(c.out, "[%s] cycle %d: no pairs configured\n", c.now().Format("15:04:05"), cycle)
		return nil
	}
	if c.table {
		c.printTable(cycle, rows)
	} else {
		c.printCompact(cycle, rows)
	}
	return nil
}

// printCompact imprime lo esencial en una línea. Los pares sincronizados o
// sin señal solo cuentan.
func (c *Console) printCompact(cycle int, rows []ports.PairReport) {
	var placed, failed, idle int
	var sb strings.Builder
	for _, r := range rows {
		switch {
		case r.Err != nil:
			failed++
		case r.Action == "placed":
			placed++
		}
		if r.Err == nil && (r.Action == "synced" || r.Action == "no_signal") {
			idle++
			continue
		}
		fmt.Fprintf(&sb, " | %s %s→%s %s", r.Pair, signalLabel(r.Signal), venueLabel(r.Venue), r.Action)
		if r.OrderID != "" {
			fmt.Fprintf(&sb, " %s", r.OrderID)
		}
		if r.Err != nil {
			fmt.Fprintf(&sb, " ERR %s", truncate(r.Err.Error(), 60))
		}
	}

	fmt.Fprintf(c.out, "[%s] cycle %d → pairs:%d idle:%d placed:%d failed:%d%s\n",
		c.now().Format("15:04:05"), cycle, len(rows), idle, placed, failed, sb.String())
}

// printTable imprime una fila por par.
func (c *Console) printTable(cycle int, rows []ports.PairReport) {
	fmt.Fprintf(c.out, "\n[%s] cycle %d — %d pairs\n", c.now().Format("15:04:05"), cycle, len(rows))

	table := tablewriter.NewWriter(c.out)
	table.Header("Pair", "Signal", "Seq", "Venue", "Open", "Action", "Order", "Detail")
	for _, r := range rows {
		seq := "-"
		if r.Signal != nil {
			seq = fmt.Sprintf("%d", r.Signal.SequenceID)
		}
		open := "-"
		if r.Venue != nil {
			open = fmt.Sprintf("%d", len(r.Venue.OpenOrderIDs))
		}
		detail := r.Detail
		if r.Err != nil {
			detail = "ERR " + truncate(r.Err.Error(), 60)
		}
		table.Append(
			r.Pair,
			signalLabel(r.Signal),
			seq,
			venueLabel(r.Venue),
			open,
			r.Action,
			dash(r.OrderID),
			dash(detail),
		)
	}
	table.Render()
}

// --- helpers ---

func signalLabel(s *domain.SignalRecord) string {
	if s == nil {
		return "?"
	}
	return s.Position.String()
}

func venueLabel(v *domain.VenueRecord) string {
	if v == nil {
		return "?"
	}
	return v.Position.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
