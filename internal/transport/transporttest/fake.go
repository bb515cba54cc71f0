// Package transporttest 는 테스트용 in-memory Transport 를 제공한다.
package transporttest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/indigauge/indigauge-go/internal/transport"
)

// Responder 는 요청에 대한 가짜 응답을 만든다.
type Responder func(req transport.Request) transport.Result

// OK 는 모든 요청에 200 {} 으로 응답한다.
func OK(req transport.Request) transport.Result {
	if req.Kind == transport.KindStartSession {
		return transport.Result{Status: 200, Body: []byte(`{"sessionToken":"tok-1"}`)}
	}
	if req.Kind == transport.KindFeedback {
		return transport.Result{Status: 200, Body: []byte(`{"id":"fb-1"}`)}
	}
	return transport.Result{Status: 200, Body: []byte(`{}`)}
}

// Fake 는 보낸 요청을 기록하고 Responder 결과를 즉시 completion 채널에 넣는다.
// Hold 를 켜면 결과를 Release 할 때까지 보류한다.
type Fake struct {
	mu       sync.Mutex
	respond  Responder
	requests []transport.Request
	held     []transport.Result
	hold     bool

	done   chan transport.Result
	next   atomic.Uint64
	closed atomic.Bool
}

func New(r Responder) *Fake {
	if r == nil {
		r = OK
	}
	return &Fake{respond: r, done: make(chan transport.Result, 4096)}
}

func (f *Fake) Send(req transport.Request) transport.Handle {
	id := transport.Handle(f.next.Add(1))
	res := f.Do(context.Background(), req)
	res.Handle = id

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hold {
		f.held = append(f.held, res)
		return id
	}
	f.done <- res
	return id
}

func (f *Fake) Do(_ context.Context, req transport.Request) transport.Result {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()

	res := respond(req)
	res.Request = req
	if res.Attempts == 0 {
		res.Attempts = 1
	}
	return res
}

func (f *Fake) Completions() <-chan transport.Result { return f.done }

func (f *Fake) Close(context.Context) error {
	f.closed.Store(true)
	return nil
}

// Closed 는 Close 가 호출되었는지 여부.
func (f *Fake) Closed() bool { return f.closed.Load() }

// Hold 는 이후 결과를 Release 전까지 보류한다.
func (f *Fake) Hold() {
	f.mu.Lock()
	f.hold = true
	f.mu.Unlock()
}

// Release 는 보류된 결과를 모두 내보내고 보류를 해제한다.
func (f *Fake) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.held {
		f.done <- r
	}
	f.held = nil
	f.hold = false
}

// Requests 는 지금까지 기록된 요청의 복사본.
func (f *Fake) Requests() []transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transport.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// ByKind 는 주어진 종류의 요청만 돌려준다.
func (f *Fake) ByKind(k transport.Kind) []transport.Request {
	var out []transport.Request
	for _, r := range f.Requests() {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}

// SetResponder 는 응답 함수를 교체한다.
func (f *Fake) SetResponder(r Responder) {
	f.mu.Lock()
	f.respond = r
	f.mu.Unlock()
}
