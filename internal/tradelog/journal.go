package tradelog

import (
	"github.com/bytedance/sonic"
	"gorm.io/gorm"

	"main/pkg/conn"
)

// TradingRecord is the persisted form of a trading log record.
type TradingRecord struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	Tag     string `gorm:"index;size:64"`
	Ts      int64  `gorm:"index"`
	Message string
	Params  string
}

// TableName fixes the journal table name.
func (TradingRecord) TableName() string {
	return "trading_records"
}

// JournalSink persists trading records to PostgreSQL.
type JournalSink struct {
	client *conn.Client
	db     *gorm.DB
}

// NewJournalSink opens the journal over an existing PostgreSQL client and
// migrates the records table.
func NewJournalSink(client *conn.Client) (*JournalSink, error) {
	db := client.DB()
	if err := db.AutoMigrate(&TradingRecord{}); err != nil {
		return nil, err
	}
	return &JournalSink{client: client, db: db}, nil
}

// Append inserts one record.
func (s *JournalSink) Append(record Record) error {
	row := TradingRecord{
		Tag:     record.Tag,
		Ts:      record.Ts,
		Message: record.Message,
	}
	if len(record.Params) > 0 {
		encoded, err := sonic.MarshalString(record.Params)
		if err != nil {
			return err
		}
		row.Params = encoded
	}
	return s.db.Create(&row).Error
}

// Close closes the underlying connection pool.
func (s *JournalSink) Close() error {
	return s.client.Close()
}
