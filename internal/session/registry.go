// Package session 은 세션 lifecycle 과 프로세스 전역 레지스트리를 관리한다.
package session

import (
	"errors"
	"sync/atomic"
	"time"
)

var (
	// ErrStartInstantSet 은 시작 시각을 두 번 기록하려 할 때.
	ErrStartInstantSet = errors.New("session start instant already set")
	// ErrAlreadyStarted 는 Active/Starting 상태에서 Start 를 다시 호출했을 때.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNotInitialized 는 세션 없이 세션이 필요한 작업을 요청했을 때.
	ErrNotInitialized = errors.New("session not initialized")
)

// StateError 는 세션 상태 관련 에러 (ErrStartInstantSet 등) 에 현재 상태를 덧붙인다.
type StateError struct {
	State State
	Err   error
}

func (e *StateError) Error() string { return e.Err.Error() + " (state " + e.State.String() + ")" }
func (e *StateError) Unwrap() error { return e.Err }

// Registry
// ------------------------------------------------------------
// producer goroutine 과 tick goroutine 이 함께 읽는 세션 값 묶음.
//   - start instant: write-once (monotonic clock 포함 time.Time)
//   - token: write-once
//   - active: 세션 Active 여부 (enqueue gate)
//
// 모두 atomic 이라 lock 없이 읽는다.
type Registry struct {
	start  atomic.Pointer[time.Time]
	token  atomic.Pointer[string]
	active atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// SetStartInstant 는 시작 시각을 한 번만 기록한다.
// 이미 값이 있으면 ErrStartInstantSet 을 돌려주고 기존 값을 유지한다.
func (r *Registry) SetStartInstant(t time.Time) error {
	if !r.start.CompareAndSwap(nil, &t) {
		return ErrStartInstantSet
	}
	return nil
}

// StartInstant 는 기록된 시작 시각.
func (r *Registry) StartInstant() (time.Time, bool) {
	p := r.start.Load()
	if p == nil {
		return time.Time{}, false
	}
	return *p, true
}

// ElapsedMs 는 시작 시각부터 now 까지의 밀리초. 시작 전이면 0.
func (r *Registry) ElapsedMs(now time.Time) uint64 {
	p := r.start.Load()
	if p == nil {
		return 0
	}
	d := now.Sub(*p)
	if d < 0 {
		return 0
	}
	return uint64(d.Milliseconds())
}

// SetToken 은 세션 토큰을 한 번만 기록한다.
func (r *Registry) SetToken(tok string) error {
	if !r.token.CompareAndSwap(nil, &tok) {
		return ErrAlreadyStarted
	}
	return nil
}

// Token 은 세션 토큰. 없으면 "".
func (r *Registry) Token() string {
	if p := r.token.Load(); p != nil {
		return *p
	}
	return ""
}

func (r *Registry) SetActive(v bool) { r.active.Store(v) }

func (r *Registry) Active() bool { return r.active.Load() }
