// internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Mode 는 SDK 동작 모드이다.
//   - live: Indigauge API 로 실제 전송
//   - dev: 네트워크 없이 콘솔 로그만 남김 (session token = "dev")
//   - disabled: 아무것도 전송하지 않음 (세션 시작 자체가 Skipped)
type Mode string

const (
	ModeLive     Mode = "live"
	ModeDev      Mode = "dev"
	ModeDisabled Mode = "disabled"
)

// DefaultAPIBase 는 INDIGAUGE_API_BASE 가 비어 있을 때 쓰는 ingest 호스트.
const DefaultAPIBase = "https://ingest.indigauge.com"

// Config
//
// SDK 실행 시 필요한 모든 설정 값을 보관하는 구조체.
// Load() 또는 Default() 로 한 번 만들어지고,
// 이후에는 변경되지 않는 불변(read-only) 설정으로 취급한다.
type Config struct {

	// ---------------------------
	// API / 게임 식별
	// ---------------------------

	APIBase     string `env:"INDIGAUGE_API_BASE" envDefault:"https://ingest.indigauge.com"`
	PublicKey   string `env:"INDIGAUGE_PUBLIC_KEY"` // sessions/start 에만 사용하는 공개 키
	GameName    string `env:"INDIGAUGE_GAME_NAME" envDefault:"indigauge-game"`
	GameVersion string `env:"INDIGAUGE_GAME_VERSION" envDefault:"0.0.0"`
	Mode        Mode   `env:"INDIGAUGE_MODE" envDefault:"live"`

	// ---------------------------
	// 파이프라인 파라미터
	// ---------------------------

	BatchSize     int           `env:"INDIGAUGE_BATCH_SIZE" envDefault:"64"`     // N개 모이면 즉시 flush
	FlushInterval time.Duration `env:"INDIGAUGE_FLUSH_INTERVAL" envDefault:"10s"` // 시간 기반 flush / heartbeat 주기
	MaxQueue      int           `env:"INDIGAUGE_MAX_QUEUE" envDefault:"10000"`   // queue + buffer 합산 상한

	// ---------------------------
	// 전송 / 재시도
	// ---------------------------
	// 재시도 횟수는 transport 레벨에서만 적용한다 (net/http 자체 retry 없음).

	RequestTimeout time.Duration `env:"INDIGAUGE_REQUEST_TIMEOUT" envDefault:"10s"`
	MaxRetries     uint32        `env:"INDIGAUGE_MAX_RETRIES" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"INDIGAUGE_RETRY_BASE_DELAY" envDefault:"1s"`

	// ---------------------------
	// 로깅
	// ---------------------------

	LogLevel    string `env:"INDIGAUGE_LOG_LEVEL" envDefault:"info"` // debug / info / warn / error / silent
	LogPretty   bool   `env:"INDIGAUGE_LOG_PRETTY" envDefault:"false"`
	LogSampleN  uint32 `env:"INDIGAUGE_LOG_SAMPLE_N" envDefault:"1"`
	ServiceName string `env:"INDIGAUGE_SERVICE_NAME" envDefault:"indigauge"`
	InstanceID  string `env:"INDIGAUGE_INSTANCE_ID"` // 비어 있으면 hostname → 랜덤 hex

	// ---------------------------
	// S3 아카이브 (선택)
	// ---------------------------
	// ArchiveBucket 이 비어 있으면 아카이브 미러는 꺼진다.

	ArchiveRegion     string        `env:"INDIGAUGE_ARCHIVE_REGION"`
	ArchiveBucket     string        `env:"INDIGAUGE_ARCHIVE_BUCKET"`
	ArchivePrefix     string        `env:"INDIGAUGE_ARCHIVE_PREFIX" envDefault:"raw"`
	ArchiveQueue      int           `env:"INDIGAUGE_ARCHIVE_QUEUE" envDefault:"64"`
	ArchiveTimeout    time.Duration `env:"INDIGAUGE_ARCHIVE_TIMEOUT" envDefault:"5s"`
	ArchiveMaxRetries uint32        `env:"INDIGAUGE_ARCHIVE_MAX_RETRIES" envDefault:"3"`
}

// Default
//
// 환경 변수를 읽지 않고 기본값만으로 Config 를 만든다.
// 게임 코드에서 직접 값을 채워 넣는 경우에 사용한다.
func Default() Config {
	return Config{
		APIBase:           DefaultAPIBase,
		GameName:          "indigauge-game",
		GameVersion:       "0.0.0",
		Mode:              ModeLive,
		BatchSize:         64,
		FlushInterval:     10 * time.Second,
		MaxQueue:          10_000,
		RequestTimeout:    10 * time.Second,
		MaxRetries:        3,
		RetryBaseDelay:    time.Second,
		LogLevel:          "info",
		LogSampleN:        1,
		ServiceName:       "indigauge",
		InstanceID:        fallbackInstanceID(),
		ArchivePrefix:     "raw",
		ArchiveQueue:      64,
		ArchiveTimeout:    5 * time.Second,
		ArchiveMaxRetries: 3,
	}
}

// Load
//
// 환경 변수 기반으로 Config 값을 초기화한다.
// 값이 없으면 envDefault 가 적용되고, 형식이 잘못된 값은 에러로 돌려준다.
// (SDK 는 host 프로세스를 죽이면 안 되므로 fail-fast 대신 error 반환)
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = fallbackInstanceID()
	}
	cfg.Mode = Mode(strings.ToLower(strings.TrimSpace(string(cfg.Mode))))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 는 파이프라인이 동작할 수 없는 값을 거른다.
func (c Config) Validate() error {
	var errs []error
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.MaxQueue <= 0 {
		errs = append(errs, fmt.Errorf("max queue must be positive, got %d", c.MaxQueue))
	}
	if c.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("flush interval must be positive, got %s", c.FlushInterval))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	switch c.Mode {
	case ModeLive, ModeDev, ModeDisabled:
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	return errors.Join(errs...)
}

// HasPublicKey 는 live 모드에서 세션을 시작할 수 있는지 여부.
func (c Config) HasPublicKey() bool {
	return c.PublicKey != ""
}

// APIURL 은 "<base>/v1/<path>" 형태의 전체 URL 을 만든다.
func (c Config) APIURL(path string) string {
	return strings.TrimRight(c.APIBase, "/") + "/v1/" + strings.TrimLeft(path, "/")
}

// ArchiveEnabled 는 S3 아카이브 미러 사용 여부.
func (c Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

// fallbackInstanceID
//
// 이 SDK 인스턴스를 식별하는 값 (로그의 instance 필드).
//   - 기본: hostname
//   - fallback: 12자리 랜덤 hex
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
