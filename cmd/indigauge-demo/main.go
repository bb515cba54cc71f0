// indigauge-demo 는 게임 루프를 흉내 내며 SDK 를 끝까지 한 번 돌려 보는 예제 프로그램이다.
//
//	INDIGAUGE_MODE=dev go run ./cmd/indigauge-demo
//	INDIGAUGE_PUBLIC_KEY=... DEMO_METRICS_ADDR=:9090 go run ./cmd/indigauge-demo
package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/indigauge/indigauge-go/internal/logger"
	"github.com/indigauge/indigauge-go/pkg/indigauge"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	levelStarted   = indigauge.MustEventType("level.started")
	levelCompleted = indigauge.MustEventType("level.completed")
	playerDied     = indigauge.MustEventType("player.died")
)

func main() {

	// ====================================================================
	// Config & Logger 초기화
	// ====================================================================
	//
	// - Config: INDIGAUGE_* 환경변수 (키가 없으면 dev 모드로 돌린다)
	// - Logger: SDK 와 같은 zerolog 전역 설정을 쓴다
	// ====================================================================
	cfg, err := indigauge.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.Mode == indigauge.ModeLive && cfg.PublicKey == "" {
		cfg.Mode = indigauge.ModeDev
	}
	indigauge.InitLogging(cfg)
	demoLog := logger.For("demo")

	// ====================================================================
	// Client 생성 & 세션 시작
	// ====================================================================
	//
	// SetDefault 이후에는 indigauge.Info(...) 같은 패키지 함수로도 보낼 수 있다.
	// RecoverAndReport 는 main goroutine 의 panic 을 game.crash 로 보고한 뒤 다시 panic 한다.
	// ====================================================================
	ig, err := indigauge.New(cfg, indigauge.WithGPU("demo-gpu"))
	if err != nil {
		demoLog.Fatal().Err(err).Msg("failed to create client")
	}
	indigauge.SetDefault(ig)
	defer indigauge.RecoverAndReport()

	if err := ig.StartSession("demo"); err != nil {
		demoLog.Warn().Err(err).Msg("session not started")
	}

	// 게임 로그 중 ig 필드가 있는 줄은 이벤트로도 보낸다
	gameLog := zerolog.New(zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stderr}, ig.LogWriter())).
		With().Timestamp().Logger()

	// ====================================================================
	// (선택) 상태 엔드포인트
	// ====================================================================
	//
	//  - /metrics : SDK 내부 카운터 (name=value)
	//  - /health  : 세션 상태
	// ====================================================================
	var srv *http.Server
	if addr := os.Getenv("DEMO_METRICS_ADDR"); addr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(ig.Stats()))
		})
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(ig.SessionState()))
		})
		srv = &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				demoLog.Error().Err(err).Msg("metrics server terminated")
			}
		}()
	}

	// ====================================================================
	// 프레임 루프 (약 60fps)
	// ====================================================================
	//
	// 매 프레임 Tick 을 호출한다. Tick 은 I/O 를 기다리지 않는다.
	// SIGINT / SIGTERM 을 받으면 루프를 빠져나가 세션을 정리한다.
	// ====================================================================
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	frame := time.NewTicker(indigauge.DefaultTickInterval)
	defer frame.Stop()

	level := 1
	indigauge.Info(levelStarted, map[string]int{"level": level})

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case sig := <-ig.InitDone():
			demoLog.Info().Str("kind", sig.Kind.String()).Str("reason", sig.Reason).Msg("session init")

		case now := <-frame.C:
			switch r := rand.IntN(600); {
			case r == 0:
				indigauge.Warn(playerDied, map[string]any{"level": level, "cause": "lava"})
			case r == 1:
				gameLog.Info().Str("ig", levelCompleted).Int("level", level).Msg("level completed")
				level++
				indigauge.Info(levelStarted, map[string]int{"level": level})
				_ = ig.UpdateMetadata(map[string]int{"highestLevel": level})
			}
			ig.Tick(now)
		}
	}

	// ====================================================================
	// Graceful Shutdown
	// ====================================================================
	//
	//  1) 세션 종료 (남은 이벤트 전부 flush + sessions/end)
	//  2) 전송 중인 요청을 제한 시간 안에서 기다린다
	// ====================================================================
	demoLog.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ig.Close(shutdownCtx); err != nil {
		demoLog.Error().Err(err).Msg("close")
	}
	if srv != nil {
		_ = srv.Shutdown(shutdownCtx)
	}
	demoLog.Info().Str("stats", ig.Stats()).Msg("shutdown complete")
}
