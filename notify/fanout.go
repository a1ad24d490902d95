package notify

import (
	"context"
	"errors"
	"getfile-lab/contract"
	"getfile-lab/domain"
	"log/slog"
)

// Fanout hands every event to each publisher in turn. Delivery is best
// effort: a failing publisher does not stop the others.
type Fanout struct {
	publishers []contract.Publisher
}

func NewFanout(publishers ...contract.Publisher) *Fanout {
	return &Fanout{publishers: publishers}
}

func (f *Fanout) Add(p contract.Publisher) *Fanout {
	f.publishers = append(f.publishers, p)
	return f
}

func (f *Fanout) Publish(ctx context.Context, evt domain.TransferEvent) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Close() {
	for _, p := range f.publishers {
		p.Close()
	}
}

// LogPublisher writes events to the logger at debug level.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) LogPublisher {
	return LogPublisher{log: log}
}

func (p LogPublisher) Publish(_ context.Context, evt domain.TransferEvent) error {
	p.log.Debug("Transfer event",
		"kind", evt.Kind,
		"id", evt.ID,
		"path", evt.Path,
		"wire_status", evt.WireStatus,
		"bytes", evt.Bytes,
		"failed", evt.Failed)
	return nil
}

func (LogPublisher) Close() {}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, domain.TransferEvent) error { return nil }
func (Nop) Close()                                              {}
