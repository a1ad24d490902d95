//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"getfile-lab/domain"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker loops until its input is exhausted or ctx is done.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// It is only used to label log lines.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// ContentProvider maps a request path to readable content.
// A missing path is reported with content.ErrNotFound.
type ContentProvider interface {
	Lookup(path string) (domain.Content, error)
}

// Publisher announces finished transfers to whoever listens.
type Publisher interface {
	Publish(ctx context.Context, evt domain.TransferEvent) error
	Close()
}

type ITransferRepository interface {
	Save(transfer domain.Transfer) error
	Get(id domain.TransferID) (domain.Transfer, error)
	List(limit int) ([]domain.Transfer, error)
	CountByStatus() (map[domain.TransferStatus]int, error)
}
