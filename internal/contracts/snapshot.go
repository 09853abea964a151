package contracts

import "time"

// AccountSnapshot records broker account values. Any field may be unavailable.
type AccountSnapshot struct {
	ID              int64     `json:"id"`
	NetLiquidation  *float64  `json:"net_liquidation"`
	TotalCash       *float64  `json:"total_cash"`
	BuyingPower     *float64  `json:"buying_power"`
	InitMarginReq   *float64  `json:"init_margin_req"`
	MaintMarginReq  *float64  `json:"maint_margin_req"`
	CreatedAt       time.Time `json:"created_at"`
}

// PositionSnapshot records one held position
type PositionSnapshot struct {
	ID            int64     `json:"id"`
	Ticker        string    `json:"ticker"`
	Position      float64   `json:"position"`
	AvgCost       *float64  `json:"avg_cost"`
	MarketPrice   *float64  `json:"market_price"`
	MarketValue   *float64  `json:"market_value"`
	UnrealizedPnL *float64  `json:"unrealized_pnl"`
	CreatedAt     time.Time `json:"created_at"`
}
