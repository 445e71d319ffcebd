package tradelog

import (
	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"
)

// ConsoleSink prints each record as one JSON line through the events log.
type ConsoleSink struct{}

// Append encodes and prints the record.
func (ConsoleSink) Append(record Record) error {
	encoded, err := sonic.MarshalString(record)
	if err != nil {
		return err
	}
	logs.Info(encoded)
	return nil
}

// Close is a no-op for the console sink.
func (ConsoleSink) Close() error {
	return nil
}
