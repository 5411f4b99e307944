package kraken

// trading.go — implementa ports.Venue sobre la API REST de Kraken.

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// ListOpenOrders returns every open order of the account, sorted by id.
func (c *Client) ListOpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	var res openOrdersResult
	if err := c.private(ctx, "OpenOrders", url.Values{}, maxRetries, &res); err != nil {
		return nil, fmt.Errorf("kraken.ListOpenOrders: %w", err)
	}

	orders := make([]domain.OpenOrder, 0, len(res.Open))
	for txid, o := range res.Open {
		orders = append(orders, domain.OpenOrder{
			ID:            txid,
			VenuePair:     o.Descr.Pair,
			Side:          domain.Side(o.Descr.Type),
			ClientOrderID: o.ClOrdID,
		})
	}
	slices.SortFunc(orders, func(a, b domain.OpenOrder) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return orders, nil
}

// PlaceOrder submits a market or limit order and returns its txid.
// AddOrder is sent once: an ambiguous failure is resolved on the next cycle
// through the client order id.
func (c *Client) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (string, error) {
	if !req.Quantity.Truncate(domain.OrderQuantityPlaces).IsPositive() {
		return "", fmt.Errorf("kraken.PlaceOrder: volume %s rounds to zero", req.Quantity)
	}

	form := url.Values{}
	form.Set("pair", req.VenuePair)
	form.Set("type", string(req.Side))
	form.Set("ordertype", string(req.Kind))
	form.Set("volume", req.VolumeString())
	if req.Kind == domain.OrderLimit {
		form.Set("price", req.Price.String())
	}
	if req.ClientOrderID != "" {
		form.Set("cl_ord_id", req.ClientOrderID)
	}

	var res addOrderResult
	if err := c.private(ctx, "AddOrder", form, 0, &res); err != nil {
		return "", fmt.Errorf("kraken.PlaceOrder: %w", err)
	}
	if len(res.TxID) == 0 {
		return "", fmt.Errorf("kraken.PlaceOrder: no txid in response (%s)", res.Descr.Order)
	}

	slog.Debug("kraken: order accepted", "txid", res.TxID[0], "descr", res.Descr.Order)
	return res.TxID[0], nil
}

// CancelOrder cancels one order. A zero count means nothing was cancelled.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	form := url.Values{}
	form.Set("txid", orderID)

	var res cancelOrderResult
	if err := c.private(ctx, "CancelOrder", form, maxRetries, &res); err != nil {
		return false, fmt.Errorf("kraken.CancelOrder: %w", err)
	}
	return res.Count > 0, nil
}

// Balances returns the account balance per asset code.
func (c *Client) Balances(ctx context.Context) (domain.Balances, error) {
	var res map[string]string
	if err := c.private(ctx, "Balance", url.Values{}, maxRetries, &res); err != nil {
		return nil, fmt.Errorf("kraken.Balances: %w", err)
	}

	out := make(domain.Balances, len(res))
	for asset, amount := range res {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("kraken.Balances: %s=%q: %w", asset, amount, err)
		}
		out[asset] = d
	}
	return out, nil
}

// Quote returns the best bid and ask of venuePair.
func (c *Client) Quote(ctx context.Context, venuePair string) (domain.Quote, error) {
	var res map[string]tickerInfo
	if err := c.public(ctx, "Ticker", url.Values{"pair": {venuePair}}, &res); err != nil {
		return domain.Quote{}, fmt.Errorf("kraken.Quote: %w", err)
	}

	// Kraken keys the result by its canonical name (ETHEUR → XETHZEUR).
	info, ok := res[venuePair]
	if !ok {
		if len(res) != 1 {
			return domain.Quote{}, fmt.Errorf("kraken.Quote: %s not in ticker response", venuePair)
		}
		for _, v := range res {
			info = v
		}
	}
	if len(info.Ask) == 0 || len(info.Bid) == 0 {
		return domain.Quote{}, fmt.Errorf("kraken.Quote: %s: empty book", venuePair)
	}

	ask, err := decimal.NewFromString(info.Ask[0])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("kraken.Quote: ask %q: %w", info.Ask[0], err)
	}
	bid, err := decimal.NewFromString(info.Bid[0])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("kraken.Quote: bid %q: %w", info.Bid[0], err)
	}
	return domain.Quote{Bid: bid, Ask: ask}, nil
}

// FindOrderByClientID looks for an order submitted with clientID among the
// open orders first, then the closed ones. "" means the venue never saw it.
func (c *Client) FindOrderByClientID(ctx context.Context, clientID string) (string, error) {
	form := url.Values{}
	form.Set("cl_ord_id", clientID)

	var open openOrdersResult
	if err := c.private(ctx, "OpenOrders", form, maxRetries, &open); err != nil {
		return "", fmt.Errorf("kraken.FindOrderByClientID: open: %w", err)
	}
	if id := matchClientID(open.Open, clientID); id != "" {
		return id, nil
	}

	var closed closedOrdersResult
	if err := c.private(ctx, "ClosedOrders", form, maxRetries, &closed); err != nil {
		return "", fmt.Errorf("kraken.FindOrderByClientID: closed: %w", err)
	}
	return matchClientID(closed.Closed, clientID), nil
}

func matchClientID(orders map[string]orderInfo, clientID string) string {
	for txid, o := range orders {
		if o.ClOrdID == clientID {
			return txid
		}
	}
	return ""
}
