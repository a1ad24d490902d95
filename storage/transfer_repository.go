package storage

import (
	"errors"
	"fmt"
	"getfile-lab/domain"
	gferrors "getfile-lab/errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const transferPrefix = "transfer:"

// TransferRepository is the download ledger. Transfer IDs are UUIDv7 so key
// order is start order.
type TransferRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewTransferRepository(db *badger.DB, log *slog.Logger) *TransferRepository {
	return &TransferRepository{db: db, log: log}
}

// Open opens a Badger database at path, or an in-memory one when path is empty.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}
	return db, nil
}

func transferKey(id domain.TransferID) []byte {
	return []byte(transferPrefix + string(id))
}

// Save inserts or overwrites the transfer.
func (r *TransferRepository) Save(transfer domain.Transfer) error {
	if transfer.ID == "" {
		return fmt.Errorf("transfer without id")
	}
	data, err := marshalTransfer(transfer)
	if err != nil {
		return fmt.Errorf("failed to marshal transfer %s: %w", transfer.ID, err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(transferKey(transfer.ID), data)
	})
}

func (r *TransferRepository) Get(id domain.TransferID) (domain.Transfer, error) {
	var transfer domain.Transfer
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(transferKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("transfer %s %w", id, gferrors.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			transfer, err = unmarshalTransfer(v)
			return err
		})
	})
	return transfer, err
}

// List returns at most limit transfers in start order. A limit <= 0 means all.
func (r *TransferRepository) List(limit int) ([]domain.Transfer, error) {
	var transfers []domain.Transfer
	prefix := []byte(transferPrefix)

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(transfers) >= limit {
				break
			}
			err := it.Item().Value(func(v []byte) error {
				t, err := unmarshalTransfer(v)
				if err != nil {
					return fmt.Errorf("failed to unmarshal transfer %s: %w", it.Item().Key(), err)
				}
				transfers = append(transfers, t)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error while listing transfers: %w", err)
	}
	return transfers, nil
}

func (r *TransferRepository) CountByStatus() (map[domain.TransferStatus]int, error) {
	transfers, err := r.List(0)
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.TransferStatus]int)
	for _, t := range transfers {
		counts[t.Status]++
	}
	return counts, nil
}

func marshalTransfer(t domain.Transfer) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"id":          string(t.ID),
		"remote_path": t.RemotePath,
		"local_path":  t.LocalPath,
		"status":      int64(t.Status),
		"wire_status": t.WireStatus,
		"advertised":  t.Advertised,
		"received":    t.Received,
		"sha256":      t.Sha256,
		"error":       t.Error,
		"started_at":  formatTime(t.StartedAt),
		"ended_at":    formatTime(t.EndedAt),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func unmarshalTransfer(data []byte) (domain.Transfer, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return domain.Transfer{}, err
	}
	f := s.GetFields()
	str := func(k string) string { return f[k].GetStringValue() }
	num := func(k string) int64 { return int64(f[k].GetNumberValue()) }

	return domain.Transfer{
		ID:         domain.TransferID(str("id")),
		RemotePath: str("remote_path"),
		LocalPath:  str("local_path"),
		Status:     domain.TransferStatus(num("status")),
		WireStatus: str("wire_status"),
		Advertised: num("advertised"),
		Received:   num("received"),
		Sha256:     str("sha256"),
		Error:      str("error"),
		StartedAt:  parseTime(str("started_at")),
		EndedAt:    parseTime(str("ended_at")),
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
