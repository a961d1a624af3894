// Package store keeps a local ledger of finished transfers and chat
// history in sqlite, so a session's results survive the process.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TransferRecord is one completed file transfer, either direction.
type TransferRecord struct {
	ID         uint `gorm:"primaryKey"`
	FileName   string
	Size       int64
	MimeType   string
	Checksum   string
	ChunkCount int
	Direction  string // "sent" or "received"
	Peer       string
	CreatedAt  int64
}

// MessageRecord is one chat message seen in a broadcast session.
type MessageRecord struct {
	ID           uint `gorm:"primaryKey"`
	MessageID    string
	Content      string
	Sender       string
	SubscriberID string
	Timestamp    int64
}

func NewDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&TransferRecord{}, &MessageRecord{}); err != nil {
		return nil, err
	}
	return db, nil
}

// Checksum is the hex sha256 of a payload, the identity under which
// transfers are recorded.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type HistoryStore struct {
	DB *gorm.DB
}

func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{DB: db}
}

func (hs *HistoryStore) RecordTransfer(rec TransferRecord) error {
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}
	return hs.DB.Create(&rec).Error
}

func (hs *HistoryStore) RecordMessage(rec MessageRecord) error {
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	return hs.DB.Create(&rec).Error
}

// Transfers returns the most recent transfers, newest first.
func (hs *HistoryStore) Transfers(limit int) ([]TransferRecord, error) {
	recs := []TransferRecord{}
	q := hs.DB.Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

// Messages returns the most recent chat messages, newest first.
func (hs *HistoryStore) Messages(limit int) ([]MessageRecord, error) {
	recs := []MessageRecord{}
	q := hs.DB.Order("timestamp desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

// TransferByChecksum finds the latest record for a payload identity.
func (hs *HistoryStore) TransferByChecksum(sum string) (TransferRecord, error) {
	rec := TransferRecord{}
	err := hs.DB.Order("id desc").First(&rec, "checksum = ?", sum).Error
	return rec, err
}
