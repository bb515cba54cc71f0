// Package logbridge 는 host 의 zerolog JSON 로그를 Indigauge 이벤트로 바꾼다.
//
//	bridge := logbridge.New(client)
//	log.Logger = zerolog.New(io.MultiWriter(os.Stdout, bridge)).With().Caller().Logger()
//	log.Info().Str("ig", "level.completed").Int("stage", 3).Msg("done")
package logbridge

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/indigauge/indigauge-go/internal/event"
	"github.com/indigauge/indigauge-go/internal/logger"
	"github.com/indigauge/indigauge-go/internal/model"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Sink 는 변환된 이벤트를 받는 쪽 (보통 Client).
type Sink interface {
	LogEvent(level model.Level, eventType string, metadata json.RawMessage, ctx *model.EventContext) bool
}

// 이벤트 타입을 지정하는 필드 이름. 앞에 있는 것이 우선.
var eventTypeFields = []string{"ig", "event_type"}

// Writer 는 zerolog 출력에 끼워 넣는 io.Writer.
// 한 번의 Write 에 담긴 JSON 줄마다 이벤트를 최대 1개 만든다.
// 파싱할 수 없는 줄은 조용히 무시한다 (로그 출력은 절대 실패하지 않는다).
type Writer struct {
	sink              Sink
	filters           []string
	levels            map[model.Level]bool
	eventTypeRequired bool
}

type Option func(*Writer)

// WithFilters 는 무시할 component prefix 를 추가한다 ("indigauge" 는 항상 포함).
func WithFilters(prefixes ...string) Option {
	return func(w *Writer) { w.filters = append(w.filters, prefixes...) }
}

// WithLevels 는 이벤트로 바꿀 레벨 목록을 교체한다 (기본 info, warn, error).
func WithLevels(levels ...model.Level) Option {
	return func(w *Writer) {
		w.levels = make(map[model.Level]bool, len(levels))
		for _, l := range levels {
			w.levels[l] = true
		}
	}
}

// WithEventTypeRequired 가 true 면 ig/event_type 필드가 없는 로그는 버린다.
func WithEventTypeRequired(v bool) Option {
	return func(w *Writer) { w.eventTypeRequired = v }
}

func New(sink Sink, opts ...Option) *Writer {
	w := &Writer{
		sink:    sink,
		filters: []string{logger.ComponentPrefix},
		levels: map[model.Level]bool{
			model.LevelInfo:  true,
			model.LevelWarn:  true,
			model.LevelError: true,
		},
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Write 는 항상 len(p), nil 을 돌려준다.
func (w *Writer) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) > 0 {
			w.handle(line)
		}
	}
	return len(p), nil
}

func (w *Writer) handle(line []byte) {
	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil {
		return
	}

	module, _ := fields["component"].(string)
	for _, f := range w.filters {
		if f != "" && strings.HasPrefix(module, f) {
			return
		}
	}

	lvlStr, _ := fields[zerolog.LevelFieldName].(string)
	level, ok := levelOf(lvlStr)
	if !ok || !w.levels[level] {
		return
	}

	eventType := ""
	for _, name := range eventTypeFields {
		v, present := fields[name]
		if !present {
			continue
		}
		delete(fields, name)
		if s, isStr := v.(string); isStr && eventType == "" && event.Check(s) == nil {
			eventType = s
		}
	}
	if eventType == "" {
		if w.eventTypeRequired {
			return
		}
		eventType = "log." + string(level)
	}

	caller, _ := fields[zerolog.CallerFieldName].(string)
	delete(fields, zerolog.LevelFieldName)
	delete(fields, zerolog.TimestampFieldName)
	delete(fields, zerolog.CallerFieldName)
	delete(fields, "component")

	var meta json.RawMessage
	if len(fields) > 0 {
		if b, err := json.Marshal(fields); err == nil {
			meta = b
		}
	}

	var ctx *model.EventContext
	if level.WantsContext() {
		file, ln := splitCaller(caller)
		if file == "" {
			file = "unknown file"
		}
		ctx = &model.EventContext{File: file, Line: ln, Module: module}
	}

	w.sink.LogEvent(level, eventType, meta, ctx)
}

// levelOf 는 zerolog 레벨 문자열을 이벤트 레벨로 바꾼다.
func levelOf(s string) (model.Level, bool) {
	switch s {
	case zerolog.LevelTraceValue:
		return model.LevelTrace, true
	case zerolog.LevelDebugValue:
		return model.LevelDebug, true
	case zerolog.LevelInfoValue:
		return model.LevelInfo, true
	case zerolog.LevelWarnValue:
		return model.LevelWarn, true
	case zerolog.LevelErrorValue:
		return model.LevelError, true
	case zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return model.LevelFatal, true
	}
	return "", false
}

// splitCaller 는 "path/file.go:42" 를 나눈다.
func splitCaller(c string) (string, uint32) {
	i := strings.LastIndexByte(c, ':')
	if i < 0 {
		return c, 0
	}
	n, err := strconv.ParseUint(c[i+1:], 10, 32)
	if err != nil {
		return c, 0
	}
	return c[:i], uint32(n)
}
