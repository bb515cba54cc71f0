package worker

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/indigauge/indigauge-go/internal/config"
	"github.com/indigauge/indigauge-go/internal/event"
	"github.com/indigauge/indigauge-go/internal/metrics"
	"github.com/indigauge/indigauge-go/internal/model"
	"github.com/indigauge/indigauge-go/internal/session"
	"github.com/indigauge/indigauge-go/internal/transport"
	"github.com/indigauge/indigauge-go/internal/transport/transporttest"

	"github.com/google/uuid"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticGate bool

func (g staticGate) Active() bool { return bool(g) }

func newEvent(typ string) event.QueuedEvent {
	return event.NewQueuedEvent(model.EventPayload{
		EventType:      typ,
		Level:          model.LevelInfo,
		IdempotencyKey: uuid.NewString(),
	})
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.BatchSize = 64
	cfg.FlushInterval = 10 * time.Second
	cfg.MaxQueue = 10_000
	return cfg
}

func activeRegistry(t *testing.T) *session.Registry {
	t.Helper()
	reg := session.NewRegistry()
	require.NoError(t, reg.SetStartInstant(time.Now()))
	require.NoError(t, reg.SetToken("tok"))
	reg.SetActive(true)
	return reg
}

func decodeBatch(t *testing.T, req transport.Request) model.BatchPayload {
	t.Helper()
	var b model.BatchPayload
	require.NoError(t, json.Unmarshal(req.Body, &b))
	return b
}

// ------------------------------------------------------------
// EventQueue
// ------------------------------------------------------------

func TestQueueRejectsWhenInactive(t *testing.T) {
	m := metrics.New()
	q := NewEventQueue(10, staticGate(false), m)

	assert.False(t, q.Enqueue(newEvent("a.b")))
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, int64(1), atomic.LoadInt64(&m.EventsDroppedInactiveTotal))
}

func TestQueueCapacityBound(t *testing.T) {
	m := metrics.New()
	q := NewEventQueue(5, staticGate(true), m)

	for i := 0; i < 5; i++ {
		require.True(t, q.Enqueue(newEvent("a.b")))
	}
	assert.False(t, q.Enqueue(newEvent("a.b")))
	assert.Equal(t, 5, q.Pending())
	assert.Equal(t, int64(1), atomic.LoadInt64(&m.EventsDroppedQueueFullTotal))

	// drain 만으로는 pending 이 줄지 않는다 (buffer 도 합산)
	var drained []event.QueuedEvent
	q.DrainAll(func(ev event.QueuedEvent) { drained = append(drained, ev) })
	assert.Len(t, drained, 5)
	assert.False(t, q.Enqueue(newEvent("a.b")))

	q.Release(2)
	assert.True(t, q.Enqueue(newEvent("a.b")))
	assert.True(t, q.Enqueue(newEvent("a.b")))
	assert.False(t, q.Enqueue(newEvent("a.b")))
}

func TestQueueConcurrentProducersNeverExceedCapacity(t *testing.T) {
	m := metrics.New()
	q := NewEventQueue(100, staticGate(true), m)

	var wg sync.WaitGroup
	var accepted atomic.Int64
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if q.Enqueue(newEvent("a.b")) {
					accepted.Add(1)
				}
				assert.LessOrEqual(t, q.Pending(), 100)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), accepted.Load())
	assert.Equal(t, int64(300), atomic.LoadInt64(&m.EventsDroppedQueueFullTotal))
}

func TestQueueFIFOPerProducer(t *testing.T) {
	q := NewEventQueue(10, staticGate(true), metrics.New())
	for i := 0; i < 3; i++ {
		ev := event.NewQueuedEvent(model.EventPayload{EventType: "a.b", Level: model.LevelInfo, IdempotencyKey: strconv.Itoa(i)})
		require.True(t, q.Enqueue(ev))
	}
	var keys []string
	q.DrainAll(func(ev event.QueuedEvent) { keys = append(keys, ev.Payload().IdempotencyKey) })
	assert.Equal(t, []string{"0", "1", "2"}, keys)
}

// ------------------------------------------------------------
// BatchBuffer
// ------------------------------------------------------------

func TestBufferPopFront(t *testing.T) {
	var b BatchBuffer
	for i := 0; i < 5; i++ {
		b.Push(event.NewQueuedEvent(model.EventPayload{IdempotencyKey: strconv.Itoa(i)}))
	}

	first := b.PopFront(3)
	require.Len(t, first, 3)
	assert.Equal(t, "0", first[0].Payload().IdempotencyKey)
	assert.Equal(t, "2", first[2].Payload().IdempotencyKey)
	assert.Equal(t, 2, b.Len())

	rest := b.PopFront(10)
	require.Len(t, rest, 2)
	assert.Equal(t, "3", rest[0].Payload().IdempotencyKey)
	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.PopFront(1))

	// 꺼낸 slice 는 이후 Push 에 영향을 받지 않는다
	b.Push(event.NewQueuedEvent(model.EventPayload{IdempotencyKey: "x"}))
	assert.Equal(t, "0", first[0].Payload().IdempotencyKey)
}

// ------------------------------------------------------------
// Manager
// ------------------------------------------------------------

func TestManagerSizeTriggerEndToEnd(t *testing.T) {
	reg := activeRegistry(t)
	tr := transporttest.New(nil)
	m := metrics.New()
	mgr := NewManager(testConfig(), reg, tr, m, zerolog.Nop())

	for i := 0; i < 100; i++ {
		require.True(t, mgr.Enqueue(newEvent("game.tick")))
	}

	start := time.Now()
	mgr.Tick(start) // size trigger → 64
	batches := tr.ByKind(transport.KindBatch)
	require.Len(t, batches, 1)
	assert.Equal(t, 64, batches[0].Events)
	assert.Equal(t, 36, mgr.BufferLen())

	mgr.Tick(start.Add(time.Second)) // 36 < 64, 타이머 미도래
	assert.Len(t, tr.ByKind(transport.KindBatch), 1)

	mgr.Tick(start.Add(10 * time.Second)) // 타이머 → 36
	batches = tr.ByKind(transport.KindBatch)
	require.Len(t, batches, 2)
	assert.Equal(t, 36, batches[1].Events)

	keys := map[string]struct{}{}
	for _, req := range batches {
		assert.Equal(t, "tok", req.Token)
		assert.Equal(t, "events/batch", req.Path)
		for _, ev := range decodeBatch(t, req).Events {
			keys[ev.IdempotencyKey] = struct{}{}
		}
	}
	assert.Len(t, keys, 100)
	assert.Equal(t, 0, mgr.Queue().Pending())

	mgr.Tick(start.Add(11 * time.Second)) // 완료 결과 처리
	assert.Equal(t, int64(2), atomic.LoadInt64(&m.BatchesSentTotal))
	assert.Equal(t, int64(100), atomic.LoadInt64(&m.EventsSentTotal))
	assert.Equal(t, 0, mgr.InFlight())
}

func TestManagerFlushIsFIFO(t *testing.T) {
	reg := activeRegistry(t)
	tr := transporttest.New(nil)
	cfg := testConfig()
	cfg.BatchSize = 3
	mgr := NewManager(cfg, reg, tr, metrics.New(), zerolog.Nop())

	for i := 0; i < 5; i++ {
		ev := event.NewQueuedEvent(model.EventPayload{EventType: "a.b", Level: model.LevelInfo, IdempotencyKey: strconv.Itoa(i)})
		require.True(t, mgr.Enqueue(ev))
	}
	mgr.Tick(time.Now())

	batches := tr.ByKind(transport.KindBatch)
	require.Len(t, batches, 1)
	var keys []string
	for _, ev := range decodeBatch(t, batches[0]).Events {
		keys = append(keys, ev.IdempotencyKey)
	}
	assert.Equal(t, []string{"0", "1", "2"}, keys)
	assert.Equal(t, 2, mgr.BufferLen())
}

func TestManagerOneFlushPerTickAndTimerStaysDue(t *testing.T) {
	reg := activeRegistry(t)
	tr := transporttest.New(nil)
	cfg := testConfig()
	cfg.BatchSize = 2
	cfg.FlushInterval = time.Second
	mgr := NewManager(cfg, reg, tr, metrics.New(), zerolog.Nop())

	start := time.Now()
	mgr.Tick(start) // 타이머 기준점

	for i := 0; i < 5; i++ {
		require.True(t, mgr.Enqueue(newEvent("a.b")))
	}

	// 타이머도 due 이지만 size flush 가 우선, tick 당 1회
	mgr.Tick(start.Add(2 * time.Second))
	assert.Len(t, tr.ByKind(transport.KindBatch), 1)
	assert.Equal(t, 3, mgr.BufferLen())

	// 다음 tick: size flush (3 >= 2)
	mgr.Tick(start.Add(2*time.Second + time.Millisecond))
	assert.Len(t, tr.ByKind(transport.KindBatch), 2)
	assert.Equal(t, 1, mgr.BufferLen())

	// 다음 tick: 남아 있던 due 타이머가 나머지 1개를 flush
	mgr.Tick(start.Add(2*time.Second + 2*time.Millisecond))
	assert.Len(t, tr.ByKind(transport.KindBatch), 3)
	assert.Equal(t, 0, mgr.BufferLen())
	assert.Empty(t, tr.ByKind(transport.KindHeartbeat))
}

func TestManagerHeartbeatOnEmptyTimerFlush(t *testing.T) {
	reg := activeRegistry(t)
	tr := transporttest.New(nil)
	m := metrics.New()
	mgr := NewManager(testConfig(), reg, tr, m, zerolog.Nop())

	start := time.Now()
	mgr.Tick(start)
	assert.Empty(t, tr.Requests())

	mgr.Tick(start.Add(10 * time.Second))
	hb := tr.ByKind(transport.KindHeartbeat)
	require.Len(t, hb, 1)
	assert.Equal(t, "sessions/heartbeat", hb[0].Path)
	assert.JSONEq(t, `{}`, string(hb[0].Body))
	assert.Empty(t, tr.ByKind(transport.KindBatch))
	assert.Equal(t, int64(1), atomic.LoadInt64(&m.HeartbeatsTotal))
}

func TestManagerDropsInvalidAtDequeue(t *testing.T) {
	reg := activeRegistry(t)
	tr := transporttest.New(nil)
	m := metrics.New()
	cfg := testConfig()
	cfg.BatchSize = 1
	mgr := NewManager(cfg, reg, tr, m, zerolog.Nop())

	require.True(t, mgr.Enqueue(newEvent("bad")))
	require.True(t, mgr.Enqueue(newEvent("good.one")))

	mgr.Tick(time.Now())

	batches := tr.ByKind(transport.KindBatch)
	require.Len(t, batches, 1)
	assert.Equal(t, "good.one", decodeBatch(t, batches[0]).Events[0].EventType)
	assert.Equal(t, int64(1), atomic.LoadInt64(&m.EventsDroppedInvalidTotal))
	assert.Equal(t, 0, mgr.Queue().Pending())
}

func TestManagerIdleWhenInactive(t *testing.T) {
	reg := session.NewRegistry()
	tr := transporttest.New(nil)
	mgr := NewManager(testConfig(), reg, tr, metrics.New(), zerolog.Nop())

	assert.False(t, mgr.Enqueue(newEvent("a.b")))
	start := time.Now()
	mgr.Tick(start)
	mgr.Tick(start.Add(time.Minute))
	assert.Empty(t, tr.Requests())
}

func TestManagerFlushAllEmptiesBuffer(t *testing.T) {
	reg := activeRegistry(t)
	tr := transporttest.New(nil)
	mgr := NewManager(testConfig(), reg, tr, metrics.New(), zerolog.Nop())

	for i := 0; i < 150; i++ {
		require.True(t, mgr.Enqueue(newEvent("a.b")))
	}
	reg.SetActive(false)
	mgr.FlushAll()

	batches := tr.ByKind(transport.KindBatch)
	require.Len(t, batches, 3)
	assert.Equal(t, 64, batches[0].Events)
	assert.Equal(t, 64, batches[1].Events)
	assert.Equal(t, 22, batches[2].Events)
	assert.Equal(t, 0, mgr.BufferLen())
	assert.Equal(t, 0, mgr.Queue().Pending())
}

func TestManagerSubmitCallsBackOnTick(t *testing.T) {
	reg := session.NewRegistry()
	tr := transporttest.New(nil)
	tr.Hold()
	mgr := NewManager(testConfig(), reg, tr, metrics.New(), zerolog.Nop())

	var got []transport.Result
	mgr.Submit(transport.Request{Kind: transport.KindFeedback, Path: "feedback"}, func(r transport.Result) {
		got = append(got, r)
	})

	mgr.Tick(time.Now())
	assert.Empty(t, got)
	assert.Equal(t, 1, mgr.InFlight())

	tr.Release()
	mgr.Tick(time.Now())
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"id":"fb-1"}`, string(got[0].Body))
	assert.Equal(t, 0, mgr.InFlight())
}

func TestManagerCountsFailures(t *testing.T) {
	reg := activeRegistry(t)
	tr := transporttest.New(func(transport.Request) transport.Result {
		return transport.Result{Status: 503, Err: &transport.Error{Kind: transport.KindStatus, Status: 503}}
	})
	m := metrics.New()
	cfg := testConfig()
	cfg.BatchSize = 1
	mgr := NewManager(cfg, reg, tr, m, zerolog.Nop())

	require.True(t, mgr.Enqueue(newEvent("a.b")))
	now := time.Now()
	mgr.Tick(now)
	mgr.Tick(now.Add(time.Millisecond))

	assert.Equal(t, int64(1), atomic.LoadInt64(&m.SendErrorsTotal))
	assert.Equal(t, int64(0), atomic.LoadInt64(&m.EventsSentTotal))
}

func TestManagerPatchesChangedMetadata(t *testing.T) {
	reg := activeRegistry(t)
	tr := transporttest.New(nil)
	mgr := NewManager(testConfig(), reg, tr, metrics.New(), zerolog.Nop())

	start := time.Now()
	mgr.Tick(start)
	mgr.SetMetadata([]byte(`{"level":3}`))

	mgr.Tick(start.Add(5 * time.Second))
	assert.Empty(t, tr.ByKind(transport.KindMetadata))

	mgr.Tick(start.Add(10 * time.Second))
	patches := tr.ByKind(transport.KindMetadata)
	require.Len(t, patches, 1)
	assert.Equal(t, "PATCH", patches[0].HTTPMethod())
	assert.Equal(t, "sessions", patches[0].Path)
	assert.JSONEq(t, `{"level":3}`, string(patches[0].Body))

	// 변경 없으면 다시 보내지 않는다
	mgr.Tick(start.Add(20 * time.Second))
	assert.Len(t, tr.ByKind(transport.KindMetadata), 1)
}
