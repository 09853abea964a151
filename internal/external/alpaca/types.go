package alpaca

import (
	"strconv"
	"time"
)

// account is the /v2/account payload; money fields arrive as decimal strings
type account struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	Currency          string `json:"currency"`
	Equity            string `json:"equity"`
	Cash              string `json:"cash"`
	BuyingPower       string `json:"buying_power"`
	InitialMargin     string `json:"initial_margin"`
	MaintenanceMargin string `json:"maintenance_margin"`
	TradingBlocked    bool   `json:"trading_blocked"`
	AccountBlocked    bool   `json:"account_blocked"`
}

type position struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
	CurrentPrice  string `json:"current_price"`
	MarketValue   string `json:"market_value"`
	UnrealizedPL  string `json:"unrealized_pl"`
}

type latestTrade struct {
	Symbol string `json:"symbol"`
	Trade  struct {
		Price     float64   `json:"p"`
		Size      float64   `json:"s"`
		Timestamp time.Time `json:"t"`
	} `json:"trade"`
}

type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}

type order struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
}

type bar struct {
	Timestamp time.Time `json:"t"`
	Close     float64   `json:"c"`
}

type barsPage struct {
	Bars          []bar  `json:"bars"`
	NextPageToken string `json:"next_page_token"`
}

type calendarDay struct {
	Date  string `json:"date"`
	Open  string `json:"open"`
	Close string `json:"close"`
}

// parseAmount turns a decimal string into a value, nil when empty or invalid
func parseAmount(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
