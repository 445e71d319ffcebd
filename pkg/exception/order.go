package exception

import "github.com/yanun0323/errors"

// Order pipeline errors
var (
	ErrOrderSendFailed      = errors.New("order send failed")
	ErrOrderUnknownSide     = errors.New("unknown order side")
	ErrOrderPriceMissing    = errors.New("limit order price is missing")
	ErrAdapterNotConnected  = errors.New("broker adapter is not connected")
	ErrOrderAlreadyFinished = errors.New("order is already in a terminal status")
)
