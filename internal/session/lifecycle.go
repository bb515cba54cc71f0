package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/indigauge/indigauge-go/internal/config"
	"github.com/indigauge/indigauge-go/internal/model"
	"github.com/indigauge/indigauge-go/internal/transport"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Sender 는 요청을 보내고 완료 시 done 을 tick goroutine 에서 호출해 주는 쪽.
// worker.Manager 가 구현한다.
type Sender interface {
	Submit(req transport.Request, done func(transport.Result))
}

// Flusher 는 세션 종료 직전 남은 이벤트를 모두 내보낸다.
type Flusher interface {
	FlushAll()
}

// StartInfo 는 sessions/start 에 실어 보낼 host 정보.
// 비어 있는 필드는 전송하지 않는다.
type StartInfo struct {
	Platform  string
	PlayerID  string
	OS        string
	CPUFamily string
	Cores     string
	Memory    string
	GPU       string
}

const signalBuffer = 8

// Lifecycle
// ------------------------------------------------------------
// 세션 상태 기계. Start / End 는 아무 goroutine 에서나 호출할 수 있고,
// 서버 응답 처리는 Sender 가 tick goroutine 에서 콜백으로 넘겨준다.
// 결과는 InitDone 채널로 알린다 (가득 차면 버림).
type Lifecycle struct {
	cfg     config.Config
	reg     *Registry
	sender  Sender
	flusher Flusher
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	state  State
	reason string

	signals chan InitDone
}

func NewLifecycle(cfg config.Config, reg *Registry, sender Sender, flusher Flusher, log zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		cfg:     cfg,
		reg:     reg,
		sender:  sender,
		flusher: flusher,
		log:     log,
		now:     time.Now,
		signals: make(chan InitDone, signalBuffer),
	}
}

// InitDone 은 Start 결과 신호 채널.
func (l *Lifecycle) InitDone() <-chan InitDone { return l.signals }

// State 는 현재 상태.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Reason 은 Failed / Skipped 로 끝난 이유.
func (l *Lifecycle) Reason() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reason
}

// Start 는 세션을 시작한다.
//   - 이미 시작됨: Skipped 신호, 상태 유지, ErrAlreadyStarted
//   - disabled: Skipped
//   - dev: 네트워크 없이 바로 Active (token "dev")
//   - live + public key 없음: Failed
//   - 그 외: Starting 으로 바꾸고 sessions/start 를 비동기 전송
func (l *Lifecycle) Start(info StartInfo) error {
	l.mu.Lock()
	if _, started := l.reg.StartInstant(); started || l.state == Starting || l.state == Active {
		state := l.state
		l.mu.Unlock()
		l.log.Warn().Str("state", state.String()).Msg("session already started")
		l.signal(InitDone{Kind: InitSkipped, Reason: "session already started"})
		return &StateError{State: state, Err: ErrAlreadyStarted}
	}

	switch l.cfg.Mode {
	case config.ModeDisabled:
		l.state, l.reason = Skipped, "indigauge disabled"
		l.mu.Unlock()
		l.signal(InitDone{Kind: InitSkipped, Reason: "indigauge disabled"})
		return nil

	case config.ModeDev:
		l.state = Starting
		l.mu.Unlock()
		l.activate(model.DevSessionToken)
		return nil
	}

	if !l.cfg.HasPublicKey() {
		l.state, l.reason = Failed, "missing public key"
		l.mu.Unlock()
		l.log.Error().Msg("cannot start session: public key is empty")
		l.signal(InitDone{Kind: InitFailure, Reason: "missing public key"})
		return fmt.Errorf("start session: %w", errors.New("missing public key"))
	}

	l.state = Starting
	l.mu.Unlock()

	body, err := json.Marshal(model.StartSessionPayload{
		ClientVersion: l.cfg.GameVersion,
		SDKVersion:    model.SDKVersion,
		PlayerID:      info.PlayerID,
		Platform:      info.Platform,
		OS:            info.OS,
		CPUFamily:     info.CPUFamily,
		Cores:         info.Cores,
		Memory:        info.Memory,
		GPU:           info.GPU,
	})
	if err != nil {
		l.fail(InitFailure, "encode start payload: "+err.Error())
		return fmt.Errorf("encode start payload: %w", err)
	}

	l.sender.Submit(transport.Request{
		Kind:  transport.KindStartSession,
		Path:  "sessions/start",
		Body:  body,
		Token: l.cfg.PublicKey,
	}, l.onStartResult)
	return nil
}

// onStartResult 는 tick goroutine 에서 호출된다.
func (l *Lifecycle) onStartResult(res transport.Result) {
	if res.Err != nil && len(res.Body) == 0 {
		l.log.Error().Err(res.Err).Msg("create session request failed")
		l.fail(InitFailure, "create session request failed")
		return
	}

	tok, err := model.DecodeStartSession(res.Body)
	switch {
	case err == nil:
		l.activate(tok)
	case errors.Is(err, model.ErrMalformedResponse):
		l.log.Error().Err(err).Int("status", res.Status).Msg("failed to decode start session response")
		l.fail(InitUnexpectedFailure, "failed to decode response")
	default:
		var eb model.ErrorBody
		if errors.As(err, &eb) {
			l.log.Error().Str("error_code", eb.Code).Str("error_message", eb.Message).Msg("failed to start session")
		}
		l.fail(InitFailure, "failed to start session")
	}
}

func (l *Lifecycle) activate(token string) {
	if err := l.reg.SetStartInstant(l.now()); err != nil {
		l.log.Error().Err(err).Msg("failed to set session start instant")
		l.fail(InitFailure, "failed to set session start instant")
		return
	}
	if err := l.reg.SetToken(token); err != nil {
		l.log.Error().Err(err).Msg("failed to set session token")
		l.fail(InitFailure, "failed to set session token")
		return
	}
	l.reg.SetActive(true)

	l.mu.Lock()
	l.state, l.reason = Active, ""
	l.mu.Unlock()

	if token == model.DevSessionToken {
		l.log.Info().Msg("DEVMODE: session started")
	} else {
		l.log.Info().Msg("session started")
	}
	l.signal(InitDone{Kind: InitSuccess})
}

func (l *Lifecycle) fail(kind InitKind, reason string) {
	l.mu.Lock()
	l.state, l.reason = Failed, reason
	l.mu.Unlock()
	l.signal(InitDone{Kind: kind, Reason: reason})
}

func (l *Lifecycle) signal(s InitDone) {
	select {
	case l.signals <- s:
	default:
		l.log.Debug().Str("kind", s.Kind.String()).Msg("init-done signal dropped")
	}
}

// End
// ------------------------------------------------------------
// 세션을 끝낸다.
//  1. enqueue 차단 (active=false)
//  2. queue drain + buffer 가 빌 때까지 flush
//  3. sessions/end 전송 (best effort, 결과는 로그만)
func (l *Lifecycle) End(reason string) error {
	l.mu.Lock()
	if l.state != Active {
		state := l.state
		l.mu.Unlock()
		return &StateError{State: state, Err: ErrNotInitialized}
	}
	l.state = Ended
	l.mu.Unlock()

	l.reg.SetActive(false)
	if l.flusher != nil {
		l.flusher.FlushAll()
	}

	body, err := json.Marshal(model.EndSessionPayload{Reason: reason})
	if err != nil {
		return fmt.Errorf("encode end payload: %w", err)
	}
	l.sender.Submit(transport.Request{
		Kind:  transport.KindEndSession,
		Path:  "sessions/end",
		Body:  body,
		Token: l.reg.Token(),
	}, func(res transport.Result) {
		if !res.OK() {
			l.log.Warn().Err(res.Err).Msg("end session request failed")
			return
		}
		l.log.Info().Str("reason", reason).Msg("session ended")
	})
	return nil
}
