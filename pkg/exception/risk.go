package exception

import "github.com/yanun0323/errors"

// Risk control errors. All of them are recoverable at the order-submission
// call site: a failed check never leaves a partial reservation behind.
var (
	ErrWrongSettings        = errors.New("wrong risk scope settings")
	ErrNumberOfOrdersLimit  = errors.New("number of orders for period limit is reached")
	ErrWrongOrderParameter  = errors.New("wrong order parameter")
	ErrNotEnoughFunds       = errors.New("not enough funds for new order")
	ErrPnlIsOutOfRange      = errors.New("total pnl is out of allowed range")
	ErrWinRatioIsOutOfRange = errors.New("total win ratio is out of allowed range")
	ErrUnknownOrderStatus   = errors.New("unknown order status")
)
