package domain

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ExecType is the execution type requested by the engine.
type ExecType string

const (
	ExecMarket    ExecType = "MARKET"
	ExecLimit     ExecType = "LIMIT"
	ExecStop      ExecType = "STOP"
	ExecStopLimit ExecType = "STOP_LIMIT"
)

// OrderStatus tracks the lifecycle of an order.
type OrderStatus int

const (
	StatusCreated OrderStatus = iota
	StatusSubmitted
	StatusAccepted
	StatusPartiallyFilled
	StatusCompleted
	StatusCanceled
	StatusMargin
	StatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case StatusCreated:
		return "CREATED"
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCanceled:
		return "CANCELED"
	case StatusMargin:
		return "MARGIN"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Order is the broker's view of a single order.
// RequestID is assigned exactly once at submission and never reused.
type Order struct {
	RequestID    int64  // allocated by the connection manager
	VenueID      string // venue-native id, set once the venue accepts
	ClientRef    string // client reference (uuid), set at creation
	Symbol       string
	Side         Side
	ExecType     ExecType
	Qty          float64
	Price        float64 // 0 for market orders
	Filled       float64 // cumulative filled quantity
	Status       OrderStatus
	CreatedUnixM int64 // Unix milliseconds
}

// IsActive reports whether the order can still trade or be canceled.
func (o *Order) IsActive() bool {
	switch o.Status {
	case StatusCreated, StatusSubmitted, StatusAccepted, StatusPartiallyFilled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the order reached a final status.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case StatusCompleted, StatusCanceled, StatusMargin, StatusRejected:
		return true
	default:
		return false
	}
}
