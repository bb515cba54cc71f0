// Package archive 는 전송한 이벤트 배치를 S3 에 JSONL.gz 로 복제 저장한다.
// 선택 기능이며 (INDIGAUGE_ARCHIVE_BUCKET), 전송 경로에는 영향을 주지 않는다.
package archive

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indigauge/indigauge-go/internal/config"
	"github.com/indigauge/indigauge-go/internal/metrics"
	"github.com/indigauge/indigauge-go/internal/model"
	"github.com/indigauge/indigauge-go/internal/retry"
	"github.com/indigauge/indigauge-go/internal/transport"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// job 은 archive 큐의 작업 1건.
type job struct {
	body []byte
	at   time.Time
}

// Mirror는 transport.Transport 를 감싸서
// batch 요청 본문을 archive 큐에도 넣는다.
//
// 주요 구성:
//   - jobs: Send → uploadLoop (bounded, 가득 차면 drop)
//   - uploadLoop: 디코딩 + JSONL.gz 인코딩 + S3 업로드(retry)
//
// Close 는 큐에 남은 작업을 모두 처리한 뒤 내부 transport 를 닫는다.
type Mirror struct {
	transport.Transport

	cfg     config.Config
	up      Uploader
	encoder *Encoder
	metrics *metrics.Metrics
	log     zerolog.Logger
	policy  retry.Policy

	mu     sync.RWMutex
	closed bool
	jobs   chan job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMirror 는 uploadLoop 를 시작한다.
func NewMirror(cfg config.Config, inner transport.Transport, up Uploader, m *metrics.Metrics, log zerolog.Logger) *Mirror {
	ctx, cancel := context.WithCancel(context.Background())
	mr := &Mirror{
		Transport: inner,
		cfg:       cfg,
		up:        up,
		encoder:   NewEncoder(),
		metrics:   m,
		log:       log,
		policy: retry.Policy{
			BaseDelay:  200 * time.Millisecond,
			MaxDelay:   2 * time.Second,
			MaxRetries: cfg.ArchiveMaxRetries,
		},
		jobs:   make(chan job, cfg.ArchiveQueue),
		ctx:    ctx,
		cancel: cancel,
	}

	mr.wg.Add(1)
	go mr.uploadLoop()
	return mr
}

// Send 는 batch 요청이면 archive 큐에 복사본을 넣고 내부 transport 로 넘긴다.
func (mr *Mirror) Send(req transport.Request) transport.Handle {
	if req.Kind == transport.KindBatch {
		mr.enqueue(req.Body)
	}
	return mr.Transport.Send(req)
}

// Do 는 내부 transport 가 Doer 이면 위임한다.
func (mr *Mirror) Do(ctx context.Context, req transport.Request) transport.Result {
	if d, ok := mr.Transport.(transport.Doer); ok {
		return d.Do(ctx, req)
	}
	return transport.Result{Request: req, Err: &transport.Error{Kind: transport.KindNetwork, Err: transport.ErrClosed}}
}

func (mr *Mirror) enqueue(body []byte) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	if mr.closed {
		return
	}

	select {
	case mr.jobs <- job{body: body, at: time.Now()}:
	default:
		atomic.AddInt64(&mr.metrics.ArchiveDroppedTotal, 1)
		mr.log.Warn().Msg("archive queue full, batch not mirrored")
	}
}

// uploadLoop는 jobs 에서 batch 를 받아 업로드한다.
// jobs 가 닫히면 남은 작업을 마치고 종료된다.
func (mr *Mirror) uploadLoop() {
	defer mr.wg.Done()

	for j := range mr.jobs {
		mr.process(mr.ctx, j)
	}
	mr.log.Debug().Msg("archive uploader exiting")
}

// process 는 batch 본문 1건을 처리한다.
//  1. {events:[...]} 디코딩
//  2. JSONL + gzip 인코딩
//  3. S3 업로드 (retry)
func (mr *Mirror) process(ctx context.Context, j job) {
	var batch model.BatchPayload
	if err := json.Unmarshal(j.body, &batch); err != nil {
		mr.log.Error().Err(err).Msg("archive: cannot decode batch")
		return
	}
	if len(batch.Events) == 0 {
		return
	}

	records := make([]Record, len(batch.Events))
	for i, ev := range batch.Events {
		records[i] = Record{ArchivedAt: j.at.Unix(), Instance: mr.cfg.InstanceID, EventPayload: ev}
	}

	data, err := mr.encoder.EncodeJSONLGZ(records)
	if err != nil {
		atomic.AddInt64(&mr.metrics.ArchivePutErrorsTotal, 1)
		mr.log.Error().Err(err).Msg("archive: encode failed")
		return
	}

	key := BuildKey(mr.cfg.ArchivePrefix, j.at, NewFilename(mr.cfg.InstanceID, j.at))
	if err := UploadWithRetry(ctx, mr.up, key, data, mr.policy, mr.metrics); err != nil {
		mr.log.Error().Err(err).Str("key", key).Int("events", len(records)).Msg("archive upload failed")
		return
	}
	atomic.AddInt64(&mr.metrics.ArchiveEventsStoredTotal, int64(len(records)))
}

// Close 는 큐를 닫고 uploadLoop 가 끝나길 기다린 뒤 내부 transport 를 닫는다.
// ctx 가 먼저 끝나면 진행 중인 업로드를 취소한다.
func (mr *Mirror) Close(ctx context.Context) error {
	mr.mu.Lock()
	if !mr.closed {
		mr.closed = true
		close(mr.jobs)
	}
	mr.mu.Unlock()

	done := make(chan struct{})
	go func() {
		mr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		mr.cancel()
		<-done
	}
	mr.cancel()

	return mr.Transport.Close(ctx)
}
