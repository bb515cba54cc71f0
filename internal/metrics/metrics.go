package metrics

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
)

// Metrics 는 SDK 파이프라인 상태를 나타내는 카운터 모음이다.
// 모든 필드는 atomic 으로만 접근한다 (producer goroutine 과 tick goroutine 이 공유).
type Metrics struct {
	// ======================
	// Queue 레벨 지표
	// ======================

	// EventsEnqueuedTotal
	// - queue 에 성공적으로 들어간 이벤트 수.
	EventsEnqueuedTotal int64

	// EventsDroppedQueueFullTotal
	// - pending(queue+buffer) 이 MaxQueue 에 도달해 버려진 이벤트 수.
	// - 지속적으로 증가하면 flush 주기나 BatchSize 가 트래픽에 비해 작다는 신호.
	EventsDroppedQueueFullTotal int64

	// EventsDroppedInactiveTotal
	// - 세션이 Active 가 아닐 때 들어와서 버려진 이벤트 수.
	EventsDroppedInactiveTotal int64

	// EventsDroppedInvalidTotal
	// - event type 검사(enqueue 또는 dequeue 시점)에 실패한 이벤트 수.
	EventsDroppedInvalidTotal int64

	// EventsDroppedSerializationTotal
	// - metadata 직렬화 실패로 만들어지지 못한 이벤트 수.
	EventsDroppedSerializationTotal int64

	// ======================
	// Delivery 레벨 지표
	// ======================

	// BatchesSentTotal / EventsSentTotal
	// - transport 가 2xx 로 완료한 batch 수와 그 안의 이벤트 수.
	BatchesSentTotal int64
	EventsSentTotal  int64

	// SendErrorsTotal
	// - 재시도를 모두 소진하고 실패로 끝난 요청 수 (batch 외 요청 포함).
	SendErrorsTotal int64

	// SendRetriesTotal
	// - transport 가 수행한 재시도 횟수(시도 기준).
	SendRetriesTotal int64

	// HeartbeatsTotal / MetadataPatchesTotal
	// - 빈 timer flush 로 보낸 heartbeat 수, 세션 metadata PATCH 수.
	HeartbeatsTotal      int64
	MetadataPatchesTotal int64

	// ======================
	// Archive (S3) 지표
	// ======================

	// ArchiveEventsStoredTotal
	// - S3 에 저장 성공한 이벤트 수 (batch 수가 아님).
	ArchiveEventsStoredTotal int64

	// ArchivePutErrorsTotal
	// - PutObject 실패 시도 횟수. 3회 재시도 모두 실패 → +3.
	ArchivePutErrorsTotal int64

	// ArchiveDroppedTotal
	// - archive 큐가 가득 차서 mirror 하지 못한 batch 수.
	ArchiveDroppedTotal int64
}

func New() *Metrics {
	return &Metrics{}
}

// counter 는 이름과 필드 포인터의 쌍. String 과 Register 가 같은 목록을 쓴다.
type counter struct {
	name string
	desc string
	v    *int64
}

func (m *Metrics) counters() []counter {
	return []counter{
		{"events_enqueued_total", "events accepted into the queue", &m.EventsEnqueuedTotal},
		{"events_dropped_queue_full_total", "events dropped because the queue was full", &m.EventsDroppedQueueFullTotal},
		{"events_dropped_inactive_total", "events dropped because no session was active", &m.EventsDroppedInactiveTotal},
		{"events_dropped_invalid_total", "events dropped by event type validation", &m.EventsDroppedInvalidTotal},
		{"events_dropped_serialization_total", "events dropped because metadata could not be encoded", &m.EventsDroppedSerializationTotal},
		{"batches_sent_total", "batches delivered", &m.BatchesSentTotal},
		{"events_sent_total", "events delivered", &m.EventsSentTotal},
		{"send_errors_total", "requests that failed after retries", &m.SendErrorsTotal},
		{"send_retries_total", "request retry attempts", &m.SendRetriesTotal},
		{"heartbeats_total", "heartbeat requests sent", &m.HeartbeatsTotal},
		{"metadata_patches_total", "session metadata updates sent", &m.MetadataPatchesTotal},
		{"archive_events_stored_total", "events mirrored to the archive bucket", &m.ArchiveEventsStoredTotal},
		{"archive_put_errors_total", "failed archive PutObject attempts", &m.ArchivePutErrorsTotal},
		{"archive_dropped_total", "batches not mirrored because the archive queue was full", &m.ArchiveDroppedTotal},
	}
}

func (m *Metrics) String() string {
	var sb strings.Builder
	sb.Grow(512)

	for _, c := range m.counters() {
		fmt.Fprintf(&sb, "%s=%d\n", c.name, atomic.LoadInt64(c.v))
	}
	return sb.String()
}

// Register
// ------------------------------------------------------------
// 카운터를 OpenTelemetry observable counter 로 노출한다.
// 값은 collect 시점에 atomic load 로 읽으므로 hot path 에는 비용이 없다.
// 이름은 "indigauge." 접두사를 붙인다.
func (m *Metrics) Register(meter metric.Meter) error {
	cs := m.counters()
	insts := make([]metric.Observable, 0, len(cs))
	obs := make([]metric.Int64ObservableCounter, 0, len(cs))

	for _, c := range cs {
		inst, err := meter.Int64ObservableCounter("indigauge."+c.name,
			metric.WithDescription(c.desc),
		)
		if err != nil {
			return fmt.Errorf("register %s: %w", c.name, err)
		}
		insts = append(insts, inst)
		obs = append(obs, inst)
	}

	_, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for i, c := range cs {
			o.ObserveInt64(obs[i], atomic.LoadInt64(c.v))
		}
		return nil
	}, insts...)
	if err != nil {
		return fmt.Errorf("register callback: %w", err)
	}
	return nil
}
