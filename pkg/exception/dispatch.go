package exception

import "github.com/yanun0323/errors"

// Dispatch errors
var (
	ErrDispatcherStopped = errors.New("dispatcher is stopped")
	ErrDispatcherActive  = errors.New("dispatcher is already active")
	ErrSubscriberBlocked = errors.New("subscriber is blocked")
	ErrSubscriberNil     = errors.New("subscriber is nil")
	ErrSecurityNil       = errors.New("security is nil")
)
