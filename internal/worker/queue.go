package worker

import (
	"sync/atomic"

	"github.com/indigauge/indigauge-go/internal/event"
	"github.com/indigauge/indigauge-go/internal/metrics"
)

// Gate 는 enqueue 허용 여부 (세션 Active 여부).
type Gate interface {
	Active() bool
}

// EventQueue
// ------------------------------------------------------------
// 다수 producer → 단일 consumer(tick) 큐.
//
//   - 버퍼 채널 용량 = MaxQueue
//   - pending = queue 안 + BatchBuffer 안의 이벤트 수.
//     enqueue 에서 증가, flush/drop 시 Release 로 감소한다.
//     pending <= MaxQueue 가 항상 유지된다.
//   - Enqueue 는 절대 막히지 않는다 (atomic add + try-send).
type EventQueue struct {
	ch      chan event.QueuedEvent
	pending atomic.Int64
	max     int64
	gate    Gate
	metrics *metrics.Metrics
}

func NewEventQueue(maxQueue int, gate Gate, m *metrics.Metrics) *EventQueue {
	return &EventQueue{
		ch:      make(chan event.QueuedEvent, maxQueue),
		max:     int64(maxQueue),
		gate:    gate,
		metrics: m,
	}
}

// Enqueue 는 이벤트를 넣고 성공 여부를 돌려준다.
// 세션이 비활성이거나 용량이 찼으면 false (이벤트는 버려진다).
func (q *EventQueue) Enqueue(ev event.QueuedEvent) bool {
	if q.gate != nil && !q.gate.Active() {
		atomic.AddInt64(&q.metrics.EventsDroppedInactiveTotal, 1)
		return false
	}

	if q.pending.Add(1) > q.max {
		q.pending.Add(-1)
		atomic.AddInt64(&q.metrics.EventsDroppedQueueFullTotal, 1)
		return false
	}

	select {
	case q.ch <- ev:
		atomic.AddInt64(&q.metrics.EventsEnqueuedTotal, 1)
		return true
	default:
		q.pending.Add(-1)
		atomic.AddInt64(&q.metrics.EventsDroppedQueueFullTotal, 1)
		return false
	}
}

// DrainAll 은 지금 채널에 있는 이벤트를 기다리지 않고 모두 꺼내 fn 에 넘긴다.
// consumer goroutine 에서만 호출한다.
func (q *EventQueue) DrainAll(fn func(event.QueuedEvent)) int {
	n := 0
	for {
		select {
		case ev := <-q.ch:
			fn(ev)
			n++
		default:
			return n
		}
	}
}

// Release 는 queue/buffer 를 떠난 이벤트 n 개만큼 pending 을 줄인다.
func (q *EventQueue) Release(n int) {
	if n > 0 {
		q.pending.Add(int64(-n))
	}
}

// Pending 은 queue + buffer 에 있는 이벤트 수.
func (q *EventQueue) Pending() int {
	return int(q.pending.Load())
}

// Len 은 채널에 남아 있는 이벤트 수 (buffer 제외).
func (q *EventQueue) Len() int {
	return len(q.ch)
}
