// Package indigauge is the public API of the Indigauge telemetry SDK.
//
// A Client owns one session: it validates and queues events without blocking
// the caller, batches them on Tick, and delivers them asynchronously.
//
//	cfg, _ := indigauge.LoadConfig()
//	ig, err := indigauge.New(cfg)
//	...
//	defer ig.RecoverAndReport()
//	ig.StartSession("steam")
//	for frame := range frames {
//		ig.Info("level.started", map[string]any{"level": 3})
//		ig.Tick(time.Now())
//	}
//	ig.Close(ctx)
package indigauge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indigauge/indigauge-go/internal/archive"
	"github.com/indigauge/indigauge-go/internal/config"
	"github.com/indigauge/indigauge-go/internal/crash"
	"github.com/indigauge/indigauge-go/internal/event"
	"github.com/indigauge/indigauge-go/internal/hardware"
	"github.com/indigauge/indigauge-go/internal/logbridge"
	"github.com/indigauge/indigauge-go/internal/logger"
	"github.com/indigauge/indigauge-go/internal/metrics"
	"github.com/indigauge/indigauge-go/internal/model"
	"github.com/indigauge/indigauge-go/internal/session"
	"github.com/indigauge/indigauge-go/internal/transport"
	"github.com/indigauge/indigauge-go/internal/worker"

	"github.com/google/uuid"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Config is the SDK configuration. See LoadConfig and DefaultConfig.
type Config = config.Config

// Mode values.
const (
	ModeLive     = config.ModeLive
	ModeDev      = config.ModeDev
	ModeDisabled = config.ModeDisabled
)

// Level is an event severity.
type Level = model.Level

const (
	LevelTrace = model.LevelTrace
	LevelDebug = model.LevelDebug
	LevelInfo  = model.LevelInfo
	LevelWarn  = model.LevelWarn
	LevelError = model.LevelError
	LevelFatal = model.LevelFatal
)

// InitDone is the outcome of StartSession, delivered on Client.InitDone.
type InitDone = session.InitDone

const (
	InitSuccess           = session.InitSuccess
	InitSkipped           = session.InitSkipped
	InitFailure           = session.InitFailure
	InitUnexpectedFailure = session.InitUnexpectedFailure
)

// Errors returned by the public API.
var (
	ErrInvalidEventType = event.ErrInvalidFormat
	ErrSerialization    = model.ErrSerialization
	ErrNotInitialized   = session.ErrNotInitialized
	ErrAlreadyStarted   = session.ErrAlreadyStarted
)

// LoadConfig reads INDIGAUGE_* environment variables.
func LoadConfig() (Config, error) { return config.Load() }

// DefaultConfig returns defaults without reading the environment.
func DefaultConfig() Config { return config.Default() }

// InitLogging configures the global zerolog logger from cfg.
// Call it before New so the SDK's component loggers pick it up.
func InitLogging(cfg Config) { logger.Init(cfg) }

// Client is safe for concurrent use. Tick must be driven from a single goroutine
// (the host frame loop, or Run).
type Client struct {
	cfg     config.Config
	opts    options
	log     zerolog.Logger
	metrics *metrics.Metrics

	reg      *session.Registry
	tr       transport.Transport
	mgr      *worker.Manager
	life     *session.Lifecycle
	reporter *crash.Reporter

	closeOnce sync.Once
	closeErr  error
}

// New builds a client. It does not start a session.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{tickInterval: DefaultTickInterval}
	for _, fn := range opts {
		fn(&o)
	}

	c := &Client{
		cfg:     cfg,
		opts:    o,
		log:     logger.ForConfig(cfg, "client"),
		metrics: metrics.New(),
		reg:     session.NewRegistry(),
	}

	if o.meter != nil {
		if err := c.metrics.Register(o.meter); err != nil {
			return nil, err
		}
	}

	tr, err := c.buildTransport()
	if err != nil {
		return nil, err
	}
	c.tr = tr

	c.mgr = worker.NewManager(cfg, c.reg, tr, c.metrics, logger.ForConfig(cfg, "worker"))
	c.life = session.NewLifecycle(cfg, c.reg, c.mgr, c.mgr, logger.ForConfig(cfg, "session"))

	if d, ok := tr.(transport.Doer); ok {
		c.reporter = crash.NewReporter(c.reg, d, logger.ForConfig(cfg, "crash"))
	}
	return c, nil
}

// buildTransport 는 모드에 맞는 transport 를 만들고, archive 가 켜져 있으면 감싼다.
func (c *Client) buildTransport() (transport.Transport, error) {
	if c.opts.transport != nil {
		return c.opts.transport, nil
	}
	if c.cfg.Mode != config.ModeLive {
		return transport.NewDev(logger.ForConfig(c.cfg, "transport")), nil
	}

	var hopts []transport.HTTPOption
	if c.opts.httpClient != nil {
		hopts = append(hopts, transport.WithHTTPClient(c.opts.httpClient))
	}
	var tr transport.Transport = transport.NewHTTP(c.cfg, c.metrics, logger.ForConfig(c.cfg, "transport"), hopts...)

	if c.cfg.ArchiveEnabled() {
		up, err := archive.NewS3Uploader(context.Background(), c.cfg)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		tr = archive.NewMirror(c.cfg, tr, up, c.metrics, logger.ForConfig(c.cfg, "archive"))
	}
	return tr, nil
}

// StartSession starts the session. The outcome arrives on InitDone; in live
// mode the server response is processed by a later Tick.
func (c *Client) StartSession(platform string) error {
	info := session.StartInfo{Platform: platform, GPU: c.opts.gpu}

	if c.cfg.Mode == config.ModeLive {
		hw := hardware.Probe()
		info.OS, info.CPUFamily, info.Cores, info.Memory = hw.OS, hw.CPUFamily, hw.Cores, hw.Memory
		info.PlayerID = c.playerID()
	}
	return c.life.Start(info)
}

func (c *Client) playerID() string {
	dir := c.opts.playerDir
	if dir == "" {
		d, err := session.PlayerIDDir(c.cfg.GameName)
		if err != nil {
			c.log.Warn().Err(err).Msg("no player id directory")
			return ""
		}
		dir = d
	}
	id, err := session.LoadOrCreatePlayerID(dir)
	if err != nil {
		c.log.Warn().Err(err).Msg("player id not persisted")
	}
	return id
}

// InitDone delivers session start outcomes.
func (c *Client) InitDone() <-chan InitDone { return c.life.InitDone() }

// SessionState returns the session state name (uninitialized, starting,
// active, ended, skipped, failed).
func (c *Client) SessionState() string { return c.life.State().String() }

// Active reports whether events are currently accepted.
func (c *Client) Active() bool { return c.reg.Active() }

// Tick drains queued events and flushes batches. Call it once per frame.
func (c *Client) Tick(now time.Time) { c.mgr.Tick(now) }

// Run calls Tick until ctx is done.
func (c *Client) Run(ctx context.Context) { c.mgr.Run(ctx, c.opts.tickInterval) }

// ------------------------------------------------------------
// 이벤트
// ------------------------------------------------------------

// Emit queues an event. It never blocks and reports whether the event was accepted.
func (c *Client) Emit(level Level, eventType string, metadata any) bool {
	return c.emit(level, eventType, metadata, 2)
}

func (c *Client) Trace(eventType string, metadata any) bool {
	return c.emit(LevelTrace, eventType, metadata, 2)
}

func (c *Client) Debug(eventType string, metadata any) bool {
	return c.emit(LevelDebug, eventType, metadata, 2)
}

func (c *Client) Info(eventType string, metadata any) bool {
	return c.emit(LevelInfo, eventType, metadata, 2)
}

func (c *Client) Warn(eventType string, metadata any) bool {
	return c.emit(LevelWarn, eventType, metadata, 2)
}

func (c *Client) Error(eventType string, metadata any) bool {
	return c.emit(LevelError, eventType, metadata, 2)
}

// emit 은 skip 만큼 위의 호출 지점을 context 로 쓴다.
func (c *Client) emit(level Level, eventType string, metadata any, skip int) bool {
	if !c.reg.Active() {
		atomic.AddInt64(&c.metrics.EventsDroppedInactiveTotal, 1)
		return false
	}

	var ctx *model.EventContext
	if level.WantsContext() {
		if pc, file, line, ok := runtime.Caller(skip); ok {
			ctx = &model.EventContext{File: file, Line: uint32(line)}
			if fn := runtime.FuncForPC(pc); fn != nil {
				ctx.Module = crash.PackageOf(fn.Name())
			}
		}
	}

	raw, err := model.EncodeMetadata(metadata)
	if err != nil {
		atomic.AddInt64(&c.metrics.EventsDroppedSerializationTotal, 1)
		c.log.Error().Err(err).Str("event_type", eventType).Msg("event dropped")
		return false
	}
	return c.enqueue(level, eventType, raw, ctx)
}

// LogEvent implements the log bridge sink.
func (c *Client) LogEvent(level Level, eventType string, metadata json.RawMessage, ctx *model.EventContext) bool {
	if !c.reg.Active() {
		atomic.AddInt64(&c.metrics.EventsDroppedInactiveTotal, 1)
		return false
	}
	return c.enqueue(level, eventType, metadata, ctx)
}

func (c *Client) enqueue(level Level, eventType string, raw json.RawMessage, ctx *model.EventContext) bool {
	if err := event.Check(eventType); err != nil {
		atomic.AddInt64(&c.metrics.EventsDroppedInvalidTotal, 1)
		c.log.Error().Err(err).Msg("event dropped")
		return false
	}
	if !level.Valid() {
		atomic.AddInt64(&c.metrics.EventsDroppedInvalidTotal, 1)
		c.log.Error().Str("level", string(level)).Msg("event dropped: unknown level")
		return false
	}

	return c.mgr.Enqueue(event.NewQueuedEvent(model.EventPayload{
		EventType:      eventType,
		Metadata:       raw,
		Level:          level,
		ElapsedMs:      c.reg.ElapsedMs(time.Now()),
		IdempotencyKey: uuid.NewString(),
		Context:        ctx,
	}))
}

// LogWriter returns an io.Writer that turns zerolog JSON lines into events.
func (c *Client) LogWriter(opts ...logbridge.Option) io.Writer {
	return logbridge.New(c, opts...)
}

// UpdateMetadata records session metadata; it is sent on the next flush timer.
func (c *Client) UpdateMetadata(v any) error {
	raw, err := model.EncodeMetadata(v)
	if err != nil {
		return err
	}
	if raw == nil {
		raw = json.RawMessage(`{}`)
	}
	c.mgr.SetMetadata(raw)
	return nil
}

// ------------------------------------------------------------
// 종료
// ------------------------------------------------------------

// EndSession flushes all queued events and ends the session.
func (c *Client) EndSession() error {
	return c.life.End(model.EndReasonEnded)
}

// Close ends an active session and waits (bounded by ctx) for in-flight requests.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		var errs []error
		if c.life.State() == session.Active {
			if err := c.EndSession(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := c.tr.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
		// 마지막 결과 처리 (로그 / 메트릭)
		c.mgr.Tick(time.Now())
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// RecoverAndReport reports a panic as a game.crash event and re-panics.
// Use it with defer at the top of each goroutine you want covered.
func (c *Client) RecoverAndReport() {
	r := recover()
	if r == nil {
		return
	}
	c.reportCrash(r, crash.PanicLocation())
	panic(r)
}

func (c *Client) reportCrash(r any, loc crash.Location) {
	if c.reporter == nil {
		return
	}
	c.reporter.Report(r, loc)
}

// Stats returns the SDK counters in "name=value" lines.
func (c *Client) Stats() string { return c.metrics.String() }
