package logger

import (
	"bytes"
	"testing"

	"github.com/indigauge/indigauge-go/internal/config"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" INFO ":  zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"silent":  zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestForAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := zlog.Logger
	zlog.Logger = zerolog.New(&buf)
	t.Cleanup(func() { zlog.Logger = prev })

	l := For("worker")
	l.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"indigauge.worker"`)
}

func TestForConfigAppliesLogLevel(t *testing.T) {
	var buf bytes.Buffer
	prev := zlog.Logger
	zlog.Logger = zerolog.New(&buf)
	t.Cleanup(func() { zlog.Logger = prev })

	cfg := config.Default()
	cfg.LogLevel = "warn"
	l := ForConfig(cfg, "session")
	l.Info().Msg("quiet")
	l.Warn().Msg("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")

	buf.Reset()
	cfg.LogLevel = "silent"
	l = ForConfig(cfg, "session")
	l.Error().Msg("nothing")
	assert.Empty(t, buf.String())
}
