package store

// HistoryRepository defines the ledger operations the CLI depends on.
type HistoryRepository interface {
	RecordTransfer(rec TransferRecord) error
	RecordMessage(rec MessageRecord) error
	Transfers(limit int) ([]TransferRecord, error)
	Messages(limit int) ([]MessageRecord, error)
	TransferByChecksum(sum string) (TransferRecord, error)
}

var _ HistoryRepository = (*HistoryStore)(nil)
