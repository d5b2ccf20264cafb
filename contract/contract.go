//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"sealmax-messenger/domain"
)

// EventSink is one live connection's inbox. Consume must never block
// the caller: a slow or dead connection reports an error instead of
// stalling fan-out to the remaining sinks.
type EventSink interface {
	Consume(ctx context.Context, m domain.Message) error
}

// IRegistry tracks which live sinks belong to which authenticated user.
type IRegistry interface {
	Register(userID int64, sink EventSink)
	// Unregister is idempotent: disconnects race with cleanup.
	Unregister(sink EventSink)
	ConnectionsFor(userID int64) []EventSink
	All() []EventSink
}

// IRouter accepts inbound message intents from authenticated connections.
type IRouter interface {
	Dispatch(cmd domain.SendMessage)
}

type WorkerName string

// Worker doesn't protect itself. Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in Worker.
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
