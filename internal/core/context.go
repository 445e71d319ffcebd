package core

import (
	"time"

	"main/internal/tradelog"
)

// Context carries the process-wide collaborators every trading component
// needs: the clock and the trading log. It is created once at startup and
// passed down explicitly; there are no package-level singletons.
type Context struct {
	clock   Clock
	trading *tradelog.Log
}

// NewContext creates a context. A nil clock defaults to wall time, a nil
// trading log defaults to a console-backed one.
func NewContext(clock Clock, trading *tradelog.Log) *Context {
	if clock == nil {
		clock = WallClock{}
	}
	if trading == nil {
		trading = tradelog.New(clock.Now, tradelog.ConsoleSink{})
	}
	return &Context{clock: clock, trading: trading}
}

// Now returns the current context time.
func (c *Context) Now() time.Time {
	return c.clock.Now()
}

// Clock returns the context clock.
func (c *Context) Clock() Clock {
	return c.clock
}

// TradingLog returns the trading log handle.
func (c *Context) TradingLog() *tradelog.Log {
	return c.trading
}

// Close flushes and closes the trading log.
func (c *Context) Close() error {
	return c.trading.Close()
}
