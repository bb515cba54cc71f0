// Package transport 는 Indigauge API 로의 비동기 요청/응답 채널을 추상화한다.
//
// Send 는 즉시 Handle 을 돌려주고, 완료 결과(Result)는 Completions 채널로
// 도착한다. tick goroutine 이 이 채널을 non-blocking 으로 비우면서
// Handle 로 요청과 결과를 짝짓는다. Tick 경로는 I/O 를 기다리지 않는다.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind 는 요청의 용도. 메트릭과 archive 미러가 사용한다.
type Kind int

const (
	KindOther Kind = iota
	KindStartSession
	KindBatch
	KindHeartbeat
	KindMetadata
	KindEndSession
	KindEvent
	KindFeedback
	KindScreenshot
)

func (k Kind) String() string {
	switch k {
	case KindStartSession:
		return "start_session"
	case KindBatch:
		return "batch"
	case KindHeartbeat:
		return "heartbeat"
	case KindMetadata:
		return "metadata"
	case KindEndSession:
		return "end_session"
	case KindEvent:
		return "event"
	case KindFeedback:
		return "feedback"
	case KindScreenshot:
		return "screenshot"
	}
	return "other"
}

// Request 는 전송 단위 1건.
type Request struct {
	Kind        Kind
	Method      string // 비어 있으면 POST
	Path        string // "/v1/" 이후 경로. 예: "events/batch"
	Body        []byte
	ContentType string // 비어 있으면 application/json
	Token       string // X-Indigauge-Key 헤더 값
	Events      int    // batch 에 담긴 이벤트 수 (KindBatch 만)
}

// HTTPMethod 는 기본값을 적용한 메서드.
func (r Request) HTTPMethod() string {
	if r.Method == "" {
		return http.MethodPost
	}
	return r.Method
}

// MIME 는 기본값을 적용한 Content-Type.
func (r Request) MIME() string {
	if r.ContentType == "" {
		return "application/json"
	}
	return r.ContentType
}

// HeaderKey 는 인증 토큰 헤더 이름.
const HeaderKey = "X-Indigauge-Key"

// Handle 은 Send 가 발급하는 요청 식별자. 0 은 사용하지 않는다.
type Handle uint64

// Result 는 요청 1건의 최종 결과 (재시도 포함).
type Result struct {
	Handle   Handle
	Request  Request
	Status   int
	Body     []byte
	Attempts uint32
	Err      error // nil 이면 2xx
}

// OK 는 2xx 로 완료되었는지 여부.
func (r Result) OK() bool { return r.Err == nil }

// Transport 는 비동기 요청 채널.
type Transport interface {
	Send(req Request) Handle
	Completions() <-chan Result
	Close(ctx context.Context) error
}

// Doer 는 결과를 기다리는 동기 요청. crash 경로처럼 프로세스가
// 곧 죽는 상황에서만 사용하며, 재시도 없이 1회 시도한다.
type Doer interface {
	Do(ctx context.Context, req Request) Result
}

// ------------------------------------------------------------
// 에러
// ------------------------------------------------------------

// ErrorKind 는 전송 실패의 분류.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota + 1
	KindTimeout
	KindStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	}
	return "unknown"
}

// ErrClosed 는 Close 이후의 Send 결과.
var ErrClosed = errors.New("transport closed")

// Error 는 전송 실패 상세.
type Error struct {
	Kind   ErrorKind
	Status int // KindStatus 일 때만
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("transport %s: http %d", e.Kind, e.Status)
	}
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable 은 network / timeout / 5xx / 429 일 때 true.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindStatus:
		return e.Status >= 500 || e.Status == http.StatusTooManyRequests
	}
	return false
}

// IsRetryable 은 err 체인에서 *Error 를 찾아 Retryable 을 확인한다.
func IsRetryable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Retryable()
	}
	return false
}
