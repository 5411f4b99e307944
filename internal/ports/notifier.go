package ports

import (
	"context"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// PairReport is one row of the cycle report.
type PairReport struct {
	Pair    string
	Signal  *domain.SignalRecord
	Venue   *domain.VenueRecord
	Action  string
	OrderID string
	Detail  string
	Err     error
}

// Notifier presenta el resultado de cada ciclo al operador.
type Notifier interface {
	NotifyCycle(ctx context.Context, cycle int, rows []PairReport) error
}
