package indigauge

import (
	"net/http"
	"time"

	"github.com/indigauge/indigauge-go/internal/transport"

	"go.opentelemetry.io/otel/metric"
)

// DefaultTickInterval 은 Run 이 Tick 을 부르는 간격 (약 60fps).
const DefaultTickInterval = 16 * time.Millisecond

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient   *http.Client
	meter        metric.Meter
	gpu          string
	playerDir    string
	tickInterval time.Duration

	// 테스트에서 transport 를 바꿔 끼운다.
	transport transport.Transport
}

// WithHTTPClient replaces the HTTP client used in live mode.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithMeter exports SDK counters as OpenTelemetry observable counters.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithGPU sets the GPU name reported at session start.
func WithGPU(name string) Option {
	return func(o *options) { o.gpu = name }
}

// WithPlayerIDDir overrides where player_id.txt is stored
// (default: <user config dir>/<game name>).
func WithPlayerIDDir(dir string) Option {
	return func(o *options) { o.playerDir = dir }
}

// WithTickInterval sets the interval used by Run.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) { o.tickInterval = d }
}

func withTransport(t transport.Transport) Option {
	return func(o *options) { o.transport = t }
}
