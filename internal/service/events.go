// Package service holds the business rules between the HTTP layer and the stores.
package service

// EventEmitter publishes realtime events. Implementations must not block.
type EventEmitter interface {
	Emit(eventType string, payload any)
}

type noopEmitter struct{}

func (noopEmitter) Emit(string, any) {}

func emitterOrNoop(e EventEmitter) EventEmitter {
	if e == nil {
		return noopEmitter{}
	}
	return e
}
