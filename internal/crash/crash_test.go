package crash

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/indigauge/indigauge-go/internal/config"
	"github.com/indigauge/indigauge-go/internal/metrics"
	"github.com/indigauge/indigauge-go/internal/model"
	"github.com/indigauge/indigauge-go/internal/session"
	"github.com/indigauge/indigauge-go/internal/transport"
	"github.com/indigauge/indigauge-go/internal/transport/transporttest"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hit struct {
	path, key string
	body      []byte
}

func startedRegistry(t *testing.T, token string) *session.Registry {
	t.Helper()
	reg := session.NewRegistry()
	require.NoError(t, reg.SetStartInstant(time.Now().Add(-2*time.Second)))
	require.NoError(t, reg.SetToken(token))
	reg.SetActive(true)
	return reg
}

func TestReportSendsCrashAndEnd(t *testing.T) {
	var mu sync.Mutex
	var hits []hit
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		hits = append(hits, hit{r.URL.Path, r.Header.Get(transport.HeaderKey), b})
		mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.APIBase = srv.URL
	cfg.RequestTimeout = time.Second
	h := transport.NewHTTP(cfg, metrics.New(), zerolog.Nop())

	reg := startedRegistry(t, "tok")
	r := NewReporter(reg, h, zerolog.Nop())

	sent := r.Report("boom", Location{File: "game/main.go", Line: 42, Module: "main"})
	require.True(t, sent)
	assert.False(t, reg.Active())

	require.Len(t, hits, 2)
	assert.Equal(t, "/v1/events", hits[0].path)
	assert.Equal(t, "tok", hits[0].key)

	var p model.EventPayload
	require.NoError(t, json.Unmarshal(hits[0].body, &p))
	assert.Equal(t, EventType, p.EventType)
	assert.Equal(t, model.LevelFatal, p.Level)
	assert.JSONEq(t, `{"message":"boom"}`, string(p.Metadata))
	assert.GreaterOrEqual(t, p.ElapsedMs, uint64(2000))
	assert.NotEmpty(t, p.IdempotencyKey)
	require.NotNil(t, p.Context)
	assert.Equal(t, "game/main.go", p.Context.File)
	assert.Equal(t, uint32(42), p.Context.Line)

	assert.Equal(t, "/v1/sessions/end", hits[1].path)
	assert.JSONEq(t, `{"reason":"crashed"}`, string(hits[1].body))
}

func TestReportSkipsDevAndUnstarted(t *testing.T) {
	fake := transporttest.New(nil)

	r := NewReporter(session.NewRegistry(), fake, zerolog.Nop())
	assert.False(t, r.Report("x", Location{}))

	r = NewReporter(startedRegistry(t, model.DevSessionToken), fake, zerolog.Nop())
	assert.False(t, r.Report("x", Location{}))

	assert.Empty(t, fake.Requests())
}

func TestReportSwallowsTransportErrors(t *testing.T) {
	fake := transporttest.New(func(transport.Request) transport.Result {
		return transport.Result{Err: &transport.Error{Kind: transport.KindNetwork, Err: errors.New("down")}}
	})
	r := NewReporter(startedRegistry(t, "tok"), fake, zerolog.Nop())

	assert.True(t, r.Report(errors.New("kaboom"), Location{}))
	reqs := fake.Requests()
	require.Len(t, reqs, 2)
	assert.True(t, strings.Contains(string(reqs[0].Body), "kaboom"))
	assert.NotContains(t, string(reqs[0].Body), `"context"`)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "s", Message("s"))
	assert.Equal(t, "e", Message(errors.New("e")))
	assert.Equal(t, "42", Message(42))
}

func locateExplicitPanic() (loc Location) {
	defer func() {
		if recover() != nil {
			loc = PanicLocation()
		}
	}()
	panic("explicit")
}

func locateRuntimePanic() (loc Location) {
	defer func() {
		if recover() != nil {
			loc = PanicLocation()
		}
	}()
	var p *Location
	return *p
}

func TestPanicLocation(t *testing.T) {
	for _, loc := range []Location{locateExplicitPanic(), locateRuntimePanic()} {
		assert.True(t, strings.HasSuffix(loc.File, "crash_test.go"), loc.File)
		assert.NotZero(t, loc.Line)
		assert.True(t, strings.HasSuffix(loc.Module, "internal/crash"), loc.Module)
	}

	assert.Equal(t, Location{}, PanicLocation())
}

func TestPackageOf(t *testing.T) {
	assert.Equal(t, "main", PackageOf("main.main"))
	assert.Equal(t, "github.com/a/b", PackageOf("github.com/a/b.(*T).M"))
	assert.Equal(t, "github.com/a/b", PackageOf("github.com/a/b.F.func1"))
}
