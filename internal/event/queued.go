package event

import (
	"fmt"

	"github.com/indigauge/indigauge-go/internal/model"
)

// QueuedEvent 는 queue 를 통과하는 이벤트 래퍼.
// enqueue 시점에 이미 검사를 거쳤더라도, 검사 경로 밖에서 만들어진
// payload 가 섞일 수 있으므로 dequeue 시점에 Validate 로 다시 확인한다.
type QueuedEvent struct {
	payload model.EventPayload
}

func NewQueuedEvent(p model.EventPayload) QueuedEvent {
	return QueuedEvent{payload: p}
}

// Payload 는 내부 payload 를 값으로 돌려준다 (복사본).
func (q QueuedEvent) Payload() model.EventPayload {
	return q.payload
}

// Validate 는 event type 형식과 레벨을 재검사한다.
func (q QueuedEvent) Validate() error {
	if err := Check(q.payload.EventType); err != nil {
		return err
	}
	if !q.payload.Level.Valid() {
		return fmt.Errorf("unknown level %q", q.payload.Level)
	}
	if q.payload.IdempotencyKey == "" {
		return fmt.Errorf("event %q has no idempotency key", q.payload.EventType)
	}
	return nil
}
