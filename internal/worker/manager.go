// internal/worker/manager.go
package worker

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indigauge/indigauge-go/internal/config"
	"github.com/indigauge/indigauge-go/internal/event"
	"github.com/indigauge/indigauge-go/internal/metrics"
	"github.com/indigauge/indigauge-go/internal/model"
	"github.com/indigauge/indigauge-go/internal/pool"
	"github.com/indigauge/indigauge-go/internal/session"
	"github.com/indigauge/indigauge-go/internal/transport"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Manager는 SDK 전송 파이프라인의 핵심이다.
// producer 가 넣은 이벤트(EventQueue)를 tick 마다 모아서(BatchBuffer)
//   - 배치 크기 도달 시 즉시 flush
//   - FlushInterval 마다 flush (비어 있으면 heartbeat)
//   - 세션 metadata 변경 시 PATCH
//
// 하는 전체 흐름을 제어한다.
//
// 주요 구성:
//   - queue: producer → Manager (non-blocking MPSC)
//   - buf: drain 된 이벤트, tick goroutine 전용
//   - pending: 전송 중 요청 handle → 완료 콜백
//
// Tick 은 I/O 를 기다리지 않는다. 전송 결과는 다음 tick 의 poll 에서 처리한다.
type Manager struct {
	cfg     config.Config
	reg     *session.Registry
	tr      transport.Transport
	metrics *metrics.Metrics
	log     zerolog.Logger

	queue *EventQueue
	buf   BatchBuffer

	tickMu    sync.Mutex // Tick / FlushAll 직렬화
	lastFlush time.Time  // flush 타이머 기준 시각
	lastMeta  time.Time  // metadata 타이머 기준 시각

	pendMu  sync.Mutex
	pending map[transport.Handle]func(transport.Result)

	metaMu    sync.Mutex
	meta      json.RawMessage
	metaDirty bool
}

// NewManager는 EventQueue 를 만들고 전송 채널을 연결한다.
// queue gate 는 registry 의 active 플래그다.
func NewManager(cfg config.Config, reg *session.Registry, tr transport.Transport, m *metrics.Metrics, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		reg:     reg,
		tr:      tr,
		metrics: m,
		log:     log,
		queue:   NewEventQueue(cfg.MaxQueue, reg, m),
		pending: make(map[transport.Handle]func(transport.Result)),
	}
}

// Enqueue 는 producer 진입점. 막히지 않는다.
func (m *Manager) Enqueue(ev event.QueuedEvent) bool {
	return m.queue.Enqueue(ev)
}

// Queue 는 내부 큐 (상태 조회용).
func (m *Manager) Queue() *EventQueue { return m.queue }

// BufferLen 은 tick 사이에 buffer 에 남아 있는 이벤트 수.
func (m *Manager) BufferLen() int {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	return m.buf.Len()
}

// InFlight 는 결과를 아직 받지 못한 요청 수.
func (m *Manager) InFlight() int {
	m.pendMu.Lock()
	defer m.pendMu.Unlock()
	return len(m.pending)
}

// Submit 은 요청을 보내고 결과가 오면 tick goroutine 에서 done 을 부른다.
// done 은 nil 이어도 된다. 어느 goroutine 에서나 호출할 수 있다.
func (m *Manager) Submit(req transport.Request, done func(transport.Result)) {
	// Send 와 등록을 한 lock 안에서 해야 poll 이 결과를 먼저 보고 놓치지 않는다.
	m.pendMu.Lock()
	h := m.tr.Send(req)
	m.pending[h] = done
	m.pendMu.Unlock()
}

// SetMetadata 는 다음 metadata 타이머에 PATCH 할 값을 기록한다.
func (m *Manager) SetMetadata(raw json.RawMessage) {
	m.metaMu.Lock()
	m.meta = raw
	m.metaDirty = true
	m.metaMu.Unlock()
}

// Run은 every 간격으로 Tick 을 호출한다. ctx 가 끝나면 반환한다.
// host 에 프레임 루프가 있으면 Run 대신 직접 Tick 을 호출하면 된다.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			m.Tick(now)
		}
	}
}

// Tick
// ------------------------------------------------------------
// tick 1회의 처리 순서:
//  1. 완료된 요청 결과 처리 (세션 상태와 무관)
//  2. 세션이 Active 가 아니면 종료
//  3. queue drain (dequeue 시점 재검사, 실패는 drop)
//  4. 크기 trigger: len >= BatchSize 면 batch 1개 flush
//  5. 타이머 trigger: FlushInterval 경과 시 flush, 비었으면 heartbeat
//     이번 tick 에 이미 flush 했으면 타이머는 due 상태로 남아 다음 tick 에 실행
//  6. metadata 타이머: 변경이 있으면 PATCH
//
// tick 당 flush 는 최대 1회.
func (m *Manager) Tick(now time.Time) {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	m.poll()

	if !m.reg.Active() {
		return
	}
	if m.lastFlush.IsZero() {
		m.lastFlush = now
		m.lastMeta = now
	}

	m.drain()

	flushed := false
	if m.buf.Len() >= m.cfg.BatchSize {
		m.flush()
		flushed = true
	}

	if !flushed && now.Sub(m.lastFlush) >= m.cfg.FlushInterval {
		m.lastFlush = now
		if m.flush() == 0 {
			m.heartbeat()
		}
	}

	if now.Sub(m.lastMeta) >= m.cfg.FlushInterval {
		m.lastMeta = now
		m.patchMetadata()
	}
}

// FlushAll 은 queue 를 비우고 buffer 가 빌 때까지 flush 한다.
// 세션 종료 직전에 호출된다. active 여부와 무관하게 동작한다.
func (m *Manager) FlushAll() {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	m.poll()
	m.drain()
	for m.buf.Len() > 0 {
		if m.flush() == 0 {
			break
		}
	}
}

// drain 은 queue 의 이벤트를 재검사하며 buffer 로 옮긴다.
func (m *Manager) drain() {
	m.queue.DrainAll(func(ev event.QueuedEvent) {
		if err := ev.Validate(); err != nil {
			m.queue.Release(1)
			atomic.AddInt64(&m.metrics.EventsDroppedInvalidTotal, 1)
			m.log.Error().Err(err).Msg("invalid event dropped")
			return
		}
		m.buf.Push(ev)
	})
}

// flush 는 가장 오래된 BatchSize 개를 한 요청으로 보낸다.
// 보낸(또는 직렬화 실패로 버린) 이벤트 수를 돌려준다.
func (m *Manager) flush() int {
	batch := m.buf.PopFront(m.cfg.BatchSize)
	n := len(batch)
	if n == 0 {
		return 0
	}
	m.queue.Release(n)

	payload := model.BatchPayload{Events: make([]model.EventPayload, n)}
	for i, ev := range batch {
		payload.Events[i] = ev.Payload()
	}

	body, err := encodeJSON(payload)
	if err != nil {
		atomic.AddInt64(&m.metrics.EventsDroppedSerializationTotal, int64(n))
		m.log.Error().Err(err).Int("events", n).Msg("failed to encode batch")
		return n
	}

	m.Submit(transport.Request{
		Kind:   transport.KindBatch,
		Path:   "events/batch",
		Body:   body,
		Token:  m.reg.Token(),
		Events: n,
	}, nil)

	m.log.Debug().Int("events", n).Int("remaining", m.buf.Len()).Msg("batch flushed")
	return n
}

func (m *Manager) heartbeat() {
	atomic.AddInt64(&m.metrics.HeartbeatsTotal, 1)
	m.Submit(transport.Request{
		Kind:  transport.KindHeartbeat,
		Path:  "sessions/heartbeat",
		Body:  []byte(`{}`),
		Token: m.reg.Token(),
	}, nil)
}

func (m *Manager) patchMetadata() {
	m.metaMu.Lock()
	if !m.metaDirty {
		m.metaMu.Unlock()
		return
	}
	body := m.meta
	m.metaDirty = false
	m.metaMu.Unlock()

	atomic.AddInt64(&m.metrics.MetadataPatchesTotal, 1)
	m.Submit(transport.Request{
		Kind:   transport.KindMetadata,
		Method: http.MethodPatch,
		Path:   "sessions",
		Body:   body,
		Token:  m.reg.Token(),
	}, nil)
}

// poll 은 완료 채널을 기다리지 않고 비우며 콜백을 부른다.
func (m *Manager) poll() {
	for {
		select {
		case res := <-m.tr.Completions():
			m.complete(res)
		default:
			return
		}
	}
}

func (m *Manager) complete(res transport.Result) {
	m.pendMu.Lock()
	done, ok := m.pending[res.Handle]
	delete(m.pending, res.Handle)
	m.pendMu.Unlock()

	if !ok {
		m.log.Debug().Uint64("handle", uint64(res.Handle)).Msg("completion for unknown request")
	}

	if res.OK() {
		if res.Request.Kind == transport.KindBatch {
			atomic.AddInt64(&m.metrics.BatchesSentTotal, 1)
			atomic.AddInt64(&m.metrics.EventsSentTotal, int64(res.Request.Events))
		}
	} else {
		atomic.AddInt64(&m.metrics.SendErrorsTotal, 1)
		m.log.Warn().
			Err(res.Err).
			Str("kind", res.Request.Kind.String()).
			Uint32("attempts", res.Attempts).
			Int("events", res.Request.Events).
			Msg("request failed")
	}

	if done != nil {
		done(res)
	}
}

// encodeJSON 은 풀 버퍼에 인코딩한 뒤 호출자 소유 slice 로 복사한다.
func encodeJSON(v any) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	out := pool.CopyBytes(buf)
	// Encoder 가 붙이는 개행 제거
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out, nil
}
