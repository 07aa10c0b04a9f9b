//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-client/auth"
	"chat-client/domain"
	"chat-client/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
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

// EventSink receives inbound events from the transport read pump.
type EventSink interface {
	Consume(ctx context.Context, e event.Inbound) error
}

// IAPI is the request/response side-channel of the backend.
// Every call but Login and Register carries the bearer token.
type IAPI interface {
	Login(ctx context.Context, req auth.LoginRequest) (domain.Session, error)
	Register(ctx context.Context, req auth.RegisterRequest) (domain.Session, error)
	ListUsers(ctx context.Context, token string, filter domain.Filter) ([]domain.Counterpart, error)
	// History returns messages newest first.
	History(ctx context.Context, token string, counterpartID domain.UserID, page domain.Page) ([]domain.Message, error)
	MarkRead(ctx context.Context, token string, chat event.ChatRef) error
}

// Subscription is the handle returned by ITransport.On.
// Unsubscribe is idempotent and never removes a handler installed by someone else.
type Subscription interface {
	Unsubscribe()
}

// ITransport is a named pub/sub channel over one persistent connection.
// On, Off and Dispatch must be called from the goroutine that owns the view state.
type ITransport interface {
	Connect(ctx context.Context, token string) error
	On(name event.Name, handler event.Handler) Subscription
	Off(name event.Name)
	Emit(name event.Name, payload any) error
	Dispatch(in event.Inbound) bool
	Events() <-chan event.Inbound
	Generation() uint64
	Connected() bool
	Disconnect()
}

type ISessionRepository interface {
	Save(session domain.Session) error
	Load() (domain.Session, error)
	Clear() error
}

// Subscriptions groups the handles owned by one view for the duration of its lifetime.
type Subscriptions []Subscription

func (s *Subscriptions) Add(sub ...Subscription) {
	*s = append(*s, sub...)
}

// Unsubscribe releases every handle. Safe to call more than once.
func (s *Subscriptions) Unsubscribe() {
	for _, sub := range *s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	*s = nil
}
