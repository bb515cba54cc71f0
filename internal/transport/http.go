package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indigauge/indigauge-go/internal/config"
	"github.com/indigauge/indigauge-go/internal/metrics"
	"github.com/indigauge/indigauge-go/internal/retry"

	"github.com/rs/zerolog"
)

const (
	// 응답 body 상한. 서버 응답은 작은 JSON 뿐이다.
	maxResponseBody = 1 << 20
	// completion 채널 용량. tick 이 멈춰도 전송 goroutine 은 막히지 않는다.
	completionBuffer = 1024
)

// HTTP 는 net/http 기반 Transport.
//
// 요청마다 goroutine 1개가 재시도까지 책임지고, 끝나면 결과를
// completion 채널에 넣는다. 채널이 가득 차 있으면 자리가 날 때까지 기다리고,
// Close 이후에만 결과를 버린다.
type HTTP struct {
	cfg     config.Config
	client  *http.Client
	policy  retry.Policy
	metrics *metrics.Metrics
	log     zerolog.Logger

	done chan Result
	quit chan struct{}
	next atomic.Uint64

	// mu 는 closed 검사와 wg.Add 를 Close 의 wg.Wait 과 직렬화한다.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// HTTPOption 은 NewHTTP 옵션.
type HTTPOption func(*HTTP)

// WithHTTPClient 는 내부 http.Client 를 교체한다 (테스트, 프록시 설정 등).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

func NewHTTP(cfg config.Config, m *metrics.Metrics, log zerolog.Logger, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		cfg:     cfg,
		client:  &http.Client{},
		metrics: m,
		log:     log,
		policy: retry.Policy{
			BaseDelay:  cfg.RetryBaseDelay,
			MaxRetries: cfg.MaxRetries,
		},
		done: make(chan Result, completionBuffer),
		quit: make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *HTTP) Completions() <-chan Result { return h.done }

// Send 는 요청을 백그라운드로 보내고 바로 반환한다.
func (h *HTTP) Send(req Request) Handle {
	id := Handle(h.next.Add(1))

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		h.deliver(Result{Handle: id, Request: req, Err: ErrClosed})
		return id
	}
	h.wg.Add(1)
	h.mu.RUnlock()

	go func() {
		defer h.wg.Done()
		h.deliver(h.run(id, req))
	}()
	return id
}

// run 은 retry 정책에 따라 요청을 반복한다.
func (h *HTTP) run(id Handle, req Request) Result {
	state := retry.State{Policy: h.policy}
	for {
		res := h.Do(context.Background(), req)
		res.Handle = id
		res.Attempts = state.Attempt + 1

		if res.OK() || !IsRetryable(res.Err) {
			return res
		}

		wait, ok := state.Next()
		if !ok {
			return res
		}
		atomic.AddInt64(&h.metrics.SendRetriesTotal, 1)
		h.log.Debug().
			Str("kind", req.Kind.String()).
			Uint32("attempt", state.Attempt).
			Dur("wait", wait).
			Err(res.Err).
			Msg("retrying request")

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-h.quit:
			t.Stop()
			return res
		}
	}
}

// Do 는 요청 1회를 동기로 수행한다. 시간 제한은 RequestTimeout.
func (h *HTTP) Do(ctx context.Context, req Request) Result {
	res := Result{Request: req, Attempts: 1}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout)
	defer cancel()

	hr, err := http.NewRequestWithContext(ctx, req.HTTPMethod(), h.cfg.APIURL(req.Path), bytes.NewReader(req.Body))
	if err != nil {
		res.Err = &Error{Kind: KindNetwork, Err: err}
		return res
	}
	hr.Header.Set("Content-Type", req.MIME())
	if req.Token != "" {
		hr.Header.Set(HeaderKey, req.Token)
	}

	resp, err := h.client.Do(hr)
	if err != nil {
		res.Err = classify(ctx, err)
		return res
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	res.Status = resp.StatusCode
	res.Body = body
	if err != nil {
		res.Err = classify(ctx, err)
		return res
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Err = &Error{Kind: KindStatus, Status: resp.StatusCode}
	}
	return res
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}

// deliver 는 결과를 completion 채널에 넣는다.
// 채널이 가득 차 있으면 tick 이 비울 때까지 기다리고, Close 된 뒤에만 버린다.
func (h *HTTP) deliver(res Result) {
	select {
	case h.done <- res:
		return
	default:
	}

	select {
	case h.done <- res:
	case <-h.quit:
		h.log.Warn().
			Str("kind", res.Request.Kind.String()).
			Msg("transport closed, result discarded")
	}
}

// Close 는 새 요청을 거부하고, 재시도 대기를 끊은 뒤
// 진행 중인 요청이 끝날 때까지(또는 ctx 만료까지) 기다린다.
func (h *HTTP) Close(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.quit)
	}
	h.mu.Unlock()

	waitCh := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
