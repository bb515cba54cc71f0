// Package crash 는 panic 을 game.crash 이벤트로 동기 보고한다.
package crash

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/indigauge/indigauge-go/internal/model"
	"github.com/indigauge/indigauge-go/internal/session"
	"github.com/indigauge/indigauge-go/internal/transport"

	"github.com/google/uuid"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// EventType 은 crash 이벤트 타입.
const EventType = "game.crash"

// Location 은 panic 이 일어난 소스 위치.
type Location struct {
	File   string
	Line   uint32
	Module string
}

// Reporter
// ------------------------------------------------------------
// 프로세스가 곧 죽는 상황에서 쓰이므로 queue 를 거치지 않고
// Doer 로 직접, 동기적으로 보낸다. 각 요청은 transport 의 RequestTimeout 으로 제한된다.
// 모든 에러는 로그만 남기고 삼킨다.
type Reporter struct {
	reg  *session.Registry
	doer transport.Doer
	log  zerolog.Logger
	now  func() time.Time
}

func NewReporter(reg *session.Registry, doer transport.Doer, log zerolog.Logger) *Reporter {
	return &Reporter{reg: reg, doer: doer, log: log, now: time.Now}
}

// Report 는 crash 이벤트와 sessions/end(crashed) 를 보낸다.
// 세션 시작 전이거나 dev 세션이면 아무것도 하지 않고 false.
func (r *Reporter) Report(value any, loc Location) bool {
	if _, ok := r.reg.StartInstant(); !ok {
		return false
	}
	token := r.reg.Token()
	if token == "" || token == model.DevSessionToken {
		return false
	}

	// 이후 이벤트는 받지 않는다
	r.reg.SetActive(false)

	meta, err := model.EncodeMetadata(map[string]string{"message": Message(value)})
	if err != nil {
		meta = nil
	}

	payload := model.EventPayload{
		EventType:      EventType,
		Metadata:       meta,
		Level:          model.LevelFatal,
		ElapsedMs:      r.reg.ElapsedMs(r.now()),
		IdempotencyKey: uuid.NewString(),
	}
	if loc.File != "" {
		payload.Context = &model.EventContext{File: loc.File, Line: loc.Line, Module: loc.Module}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to encode crash event")
		return false
	}

	ctx := context.Background()
	if res := r.doer.Do(ctx, transport.Request{
		Kind:  transport.KindEvent,
		Path:  "events",
		Body:  body,
		Token: token,
	}); !res.OK() {
		r.log.Error().Err(res.Err).Msg("failed to send crash event")
	}

	end, _ := json.Marshal(model.EndSessionPayload{Reason: model.EndReasonCrashed})
	if res := r.doer.Do(ctx, transport.Request{
		Kind:  transport.KindEndSession,
		Path:  "sessions/end",
		Body:  end,
		Token: token,
	}); !res.OK() {
		r.log.Error().Err(res.Err).Msg("failed to end crashed session")
	}
	return true
}

// Message 는 panic 값을 사람이 읽을 문자열로 바꾼다.
func Message(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// PanicLocation 은 deferred recover 안에서 호출되어 panic 이 일어난 위치를 찾는다.
// runtime.gopanic 다음의 첫 non-runtime 프레임이 panic 지점이다
// (nil 역참조 같은 runtime 에러는 runtime.sigpanic 등을 거친다).
// panic 중이 아니면 빈 Location.
func PanicLocation() Location {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	afterPanic := false
	for {
		f, more := frames.Next()
		if afterPanic && !isRuntimeFrame(f.Function) {
			return Location{File: f.File, Line: uint32(f.Line), Module: PackageOf(f.Function)}
		}
		if f.Function == "runtime.gopanic" {
			afterPanic = true
		}
		if !more {
			return Location{}
		}
	}
}

func isRuntimeFrame(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") || strings.HasPrefix(fn, "internal/runtime/")
}

// PackageOf 는 "github.com/a/b.(*T).M" → "github.com/a/b".
func PackageOf(fn string) string {
	slash := strings.LastIndexByte(fn, '/')
	if dot := strings.IndexByte(fn[slash+1:], '.'); dot >= 0 {
		return fn[:slash+1+dot]
	}
	return fn
}
