package worker

import "github.com/indigauge/indigauge-go/internal/event"

// BatchBuffer 는 drain 된 이벤트를 flush 전까지 들고 있는 FIFO 버퍼.
// tick goroutine 에서만 접근하므로 lock 이 없다.
type BatchBuffer struct {
	items []event.QueuedEvent
}

func (b *BatchBuffer) Push(ev event.QueuedEvent) {
	b.items = append(b.items, ev)
}

func (b *BatchBuffer) Len() int {
	return len(b.items)
}

// PopFront 는 가장 오래된 min(n, Len) 개를 꺼낸다.
// 반환 slice 는 호출자 소유 (내부 배열과 공유하지 않음).
func (b *BatchBuffer) PopFront(n int) []event.QueuedEvent {
	if n > len(b.items) {
		n = len(b.items)
	}
	if n <= 0 {
		return nil
	}

	out := make([]event.QueuedEvent, n)
	copy(out, b.items[:n])

	rest := copy(b.items, b.items[n:])
	clear(b.items[rest:])
	b.items = b.items[:rest]
	return out
}
