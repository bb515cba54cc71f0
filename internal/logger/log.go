// internal/logger/log.go
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/indigauge/indigauge-go/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// ComponentPrefix 는 SDK 내부 로그의 component 필드 prefix.
// logbridge 는 이 prefix 를 가진 로그를 다시 이벤트로 만들지 않는다 (무한 루프 방지).
const ComponentPrefix = "indigauge"

// Init
//
// SDK 초기화 시 한 번 호출되는 로거 초기화 함수입니다.
// Config 설정에 따라 '개발자용 화면' 또는 '운영용 JSON 로그'로 형태를 바꿉니다.
//
// [주요 기능]
//
//  1. 로그 레벨: debug / info / warn / error / silent
//     - silent 는 SDK 로그를 전부 끕니다 (게임 콘솔을 더럽히지 않음).
//
//  2. 로그 포맷 자동 전환:
//     - LogPretty=true: 콘솔용 컬러 텍스트
//     - LogPretty=false: JSON (수집기/분석 도구용)
//
//  3. 공통 필드: 모든 로그에 "service", "instance" 가 붙습니다.
//
//  4. 샘플링: Debug/Info 는 LogSampleN 중 1개만 기록, Warn/Error 는 100% 기록.
//
// 사용 예:
//
//	logger.Init(cfg)
//	logger.For("worker").Info().Msg("pipeline started")
func Init(cfg config.Config) {

	// -------------------------------------------------------------------
	// 1) 로그 레벨 결정
	// -------------------------------------------------------------------
	level := ParseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)

	// -------------------------------------------------------------------
	// 2) 출력 방식 결정 (사람 vs 기계)
	// -------------------------------------------------------------------
	var w io.Writer
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	} else {
		w = os.Stdout
	}

	// -------------------------------------------------------------------
	// 3) 기본 Logger 생성 (공통 태그 부착)
	// -------------------------------------------------------------------
	base := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Logger()

	// -------------------------------------------------------------------
	// 4) 샘플링 설정
	// -------------------------------------------------------------------
	logger := base
	if cfg.LogSampleN > 1 {
		logger = base.Sample(&zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: cfg.LogSampleN},
			InfoSampler:  &zerolog.BasicSampler{N: cfg.LogSampleN},
		})
	}

	// -------------------------------------------------------------------
	// 5) 전역 Logger 교체
	// -------------------------------------------------------------------
	zlog.Logger = logger

	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}

// ParseLevel 은 설정 문자열을 zerolog 레벨로 바꾼다.
// 알 수 없는 값은 info 로 취급한다.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "silent" || s == "off" {
		return zerolog.Disabled
	}
	if l, err := zerolog.ParseLevel(s); err == nil && s != "" {
		return l
	}
	return zerolog.InfoLevel
}

// For 는 전역 로거에 component 필드를 붙인 sub-logger 를 돌려준다.
func For(component string) zerolog.Logger {
	return zlog.Logger.With().Str("component", ComponentPrefix+"."+component).Logger()
}

// ForConfig 는 For 에 cfg.LogLevel 을 적용한다.
// Init 을 부르지 않은 host 에서도 SDK 로그 레벨은 설정을 따른다.
func ForConfig(cfg config.Config, component string) zerolog.Logger {
	return For(component).Level(ParseLevel(cfg.LogLevel))
}
