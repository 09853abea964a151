package contracts

import "time"

// Execution is the append-only audit row written once per trade attempt.
// Price, Qty and OrderStatus stay nil when the attempt did not get that far.
type Execution struct {
	ID          int64     `json:"id"`
	Ticker      string    `json:"ticker"`
	AmountUSD   float64   `json:"amount_usd"`
	Price       *float64  `json:"price"`
	Qty         *float64  `json:"qty"`
	DryRun      bool      `json:"dry_run"`
	OrderStatus *string   `json:"order_status"`
	Error       *string   `json:"error"`
	CreatedAt   time.Time `json:"created_at"`
}

// Failed reports whether the attempt ended in the Failed state
func (e Execution) Failed() bool {
	return e.Error != nil
}

// OrderStatusUnknown is recorded when a live order's status could not be read back
const OrderStatusUnknown = "unknown"

// Outcome is the forward-return evaluation of one Execution
type Outcome struct {
	ID               int64     `json:"id"`
	ExecutionID      int64     `json:"execution_id"`
	Ticker           string    `json:"ticker"`
	EntrySessionDate time.Time `json:"entry_session_date"`
	EntryClose       float64   `json:"entry_close"`
	T3Close          float64   `json:"t3_close"`
	T7Close          float64   `json:"t7_close"`
	T3Return         float64   `json:"t3_return"`
	T7Return         float64   `json:"t7_return"`
	SPYT3Return      float64   `json:"spy_t3_return"`
	SPYT7Return      float64   `json:"spy_t7_return"`
	ComputedAt       time.Time `json:"computed_at"`
}

// ExcessT3 is the T+3 return over the benchmark
func (o Outcome) ExcessT3() float64 {
	return o.T3Return - o.SPYT3Return
}

// ExcessT7 is the T+7 return over the benchmark
func (o Outcome) ExcessT7() float64 {
	return o.T7Return - o.SPYT7Return
}
