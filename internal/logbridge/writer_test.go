package logbridge

import (
	"bytes"
	"sync"
	"testing"

	"github.com/indigauge/indigauge-go/internal/model"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	level     model.Level
	eventType string
	meta      json.RawMessage
	ctx       *model.EventContext
}

type captureSink struct {
	mu     sync.Mutex
	events []captured
}

func (s *captureSink) LogEvent(level model.Level, eventType string, meta json.RawMessage, ctx *model.EventContext) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, captured{level, eventType, meta, ctx})
	return true
}

func newLogger(w *Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

func TestExplicitEventType(t *testing.T) {
	sink := &captureSink{}
	log := newLogger(New(sink))

	log.Info().Str("ig", "level.completed").Int("stage", 3).Msg("done")

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, model.LevelInfo, ev.level)
	assert.Equal(t, "level.completed", ev.eventType)
	assert.JSONEq(t, `{"stage":3,"message":"done"}`, string(ev.meta))
	assert.Nil(t, ev.ctx)
}

func TestFallbackEventType(t *testing.T) {
	sink := &captureSink{}
	log := newLogger(New(sink))

	log.Info().Msg("plain")
	log.Info().Str("event_type", "not valid").Msg("bad type")

	require.Len(t, sink.events, 2)
	assert.Equal(t, "log.info", sink.events[0].eventType)
	assert.Equal(t, "log.info", sink.events[1].eventType)
	assert.NotContains(t, string(sink.events[1].meta), "event_type")
}

func TestEventTypeRequired(t *testing.T) {
	sink := &captureSink{}
	log := newLogger(New(sink, WithEventTypeRequired(true)))

	log.Info().Msg("dropped")
	log.Info().Str("ig", "ui.click").Msg("kept")

	require.Len(t, sink.events, 1)
	assert.Equal(t, "ui.click", sink.events[0].eventType)
}

func TestLevelFilter(t *testing.T) {
	sink := &captureSink{}
	log := newLogger(New(sink))

	log.Debug().Msg("debug is off by default")
	log.Trace().Msg("trace too")
	assert.Empty(t, sink.events)

	sink2 := &captureSink{}
	log2 := newLogger(New(sink2, WithLevels(model.LevelDebug)))
	log2.Debug().Msg("now on")
	log2.Info().Msg("info now off")
	require.Len(t, sink2.events, 1)
	assert.Equal(t, "log.debug", sink2.events[0].eventType)
}

func TestComponentFilter(t *testing.T) {
	sink := &captureSink{}
	log := newLogger(New(sink, WithFilters("physics")))

	log.Info().Str("component", "indigauge.worker").Msg("sdk internal")
	log.Info().Str("component", "physics.solver").Msg("noisy")
	log.Info().Str("component", "gameplay").Msg("kept")

	require.Len(t, sink.events, 1)
	assert.JSONEq(t, `{"message":"kept"}`, string(sink.events[0].meta))
}

func TestWarnCarriesCallerContext(t *testing.T) {
	sink := &captureSink{}
	log := newLogger(New(sink))

	log.Warn().Str("caller", "game/world.go:88").Str("component", "world").Msg("slow frame")
	log.Error().Msg("no caller")

	require.Len(t, sink.events, 2)
	ctx := sink.events[0].ctx
	require.NotNil(t, ctx)
	assert.Equal(t, "game/world.go", ctx.File)
	assert.Equal(t, uint32(88), ctx.Line)
	assert.Equal(t, "world", ctx.Module)

	require.NotNil(t, sink.events[1].ctx)
	assert.Equal(t, "unknown file", sink.events[1].ctx.File)
}

func TestWriteIgnoresGarbage(t *testing.T) {
	sink := &captureSink{}
	w := New(sink)

	n, err := w.Write([]byte("not json\n"))
	assert.NoError(t, err)
	assert.Equal(t, 9, n)

	var buf bytes.Buffer
	buf.WriteString(`{"level":"info","message":"a"}` + "\n")
	buf.WriteString(`{"level":"info","message":"b"}` + "\n")
	_, err = w.Write(buf.Bytes())
	assert.NoError(t, err)
	assert.Len(t, sink.events, 2)
}

func TestSplitCaller(t *testing.T) {
	f, l := splitCaller("a/b.go:12")
	assert.Equal(t, "a/b.go", f)
	assert.Equal(t, uint32(12), l)

	f, l = splitCaller("weird")
	assert.Equal(t, "weird", f)
	assert.Equal(t, uint32(0), l)
}
