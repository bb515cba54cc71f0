package transport

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Dev 는 네트워크를 쓰지 않는 Transport.
// 요청을 로그로 남기고 항상 200 으로 응답한다.
type Dev struct {
	log  zerolog.Logger
	done chan Result
	next atomic.Uint64
}

func NewDev(log zerolog.Logger) *Dev {
	return &Dev{log: log, done: make(chan Result, completionBuffer)}
}

func (d *Dev) Send(req Request) Handle {
	id := Handle(d.next.Add(1))
	res := d.Do(context.Background(), req)
	res.Handle = id
	select {
	case d.done <- res:
	default:
	}
	return id
}

func (d *Dev) Do(_ context.Context, req Request) Result {
	ev := d.log.Info().
		Str("kind", req.Kind.String()).
		Str("method", req.HTTPMethod()).
		Str("path", req.Path)
	if req.Events > 0 {
		ev = ev.Int("events", req.Events)
	}
	if req.MIME() == "application/json" && len(req.Body) > 0 {
		ev = ev.RawJSON("body", req.Body)
	} else {
		ev = ev.Int("bytes", len(req.Body))
	}
	ev.Msg("dev request")

	return Result{Request: req, Status: 200, Body: devResponse(req.Kind), Attempts: 1}
}

func devResponse(k Kind) []byte {
	switch k {
	case KindStartSession:
		return []byte(`{"sessionToken":"dev"}`)
	case KindFeedback:
		return []byte(`{"id":"dev"}`)
	}
	return []byte(`{}`)
}

func (d *Dev) Completions() <-chan Result { return d.done }

func (d *Dev) Close(context.Context) error { return nil }
