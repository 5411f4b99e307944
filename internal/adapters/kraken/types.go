package kraken

import "encoding/json"

// DTOs raw de la API de Kraken. Solo se usan dentro de este paquete.

// envelope es la forma común de todas las respuestas.
type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// orderDescr es la descripción de una orden en OpenOrders/ClosedOrders.
type orderDescr struct {
	Pair      string `json:"pair"`
	Type      string `json:"type"`      // buy | sell
	OrderType string `json:"ordertype"` // market | limit | ...
	Price     string `json:"price"`
}

type orderInfo struct {
	Status   string     `json:"status"`
	ClOrdID  string     `json:"cl_ord_id"`
	Volume   string     `json:"vol"`
	Executed string     `json:"vol_exec"`
	Descr    orderDescr `json:"descr"`
}

// openOrdersResult es el result de /0/private/OpenOrders.
type openOrdersResult struct {
	Open map[string]orderInfo `json:"open"`
}

// closedOrdersResult es el result de /0/private/ClosedOrders.
type closedOrdersResult struct {
	Closed map[string]orderInfo `json:"closed"`
	Count  int                  `json:"count"`
}

// addOrderResult es el result de /0/private/AddOrder.
type addOrderResult struct {
	Descr struct {
		Order string `json:"order"`
	} `json:"descr"`
	TxID []string `json:"txid"`
}

// cancelOrderResult es el result de /0/private/CancelOrder.
type cancelOrderResult struct {
	Count int `json:"count"`
}

// tickerInfo es una entrada de /0/public/Ticker. a y b son
// [price, whole lot volume, lot volume].
type tickerInfo struct {
	Ask []string `json:"a"`
	Bid []string `json:"b"`
}
