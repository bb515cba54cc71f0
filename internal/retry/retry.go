// Package retry 는 전송 실패 시의 재시도 정책을 순수 함수로 제공한다.
// I/O 가 없으므로 어떤 transport 구현에서도 그대로 재사용할 수 있다.
package retry

import (
	"math"
	"time"
)

const (
	// MaxExponent 는 2^attempt 의 지수 상한 (overflow 방지).
	MaxExponent = 10
	// MaxDelaySeconds 는 backoff 결과의 절대 상한 (무한 대기 방지).
	MaxDelaySeconds = 60.0
)

// BackoffDelay 는 attempt 번째 재시도 전에 기다릴 시간(초)을 계산한다.
//
//	min(base * 2^min(attempt, 10), 60)
func BackoffDelay(attempt uint32, baseDelay float64) float64 {
	exp := attempt
	if exp > MaxExponent {
		exp = MaxExponent
	}
	d := baseDelay * math.Pow(2, float64(exp))
	if math.IsNaN(d) || d > MaxDelaySeconds {
		return MaxDelaySeconds
	}
	return d
}

// ShouldRetry 는 attempt < maxRetries 일 때만 true.
func ShouldRetry(attempt, maxRetries uint32) bool {
	return attempt < maxRetries
}

// Policy 는 transport 가 사용하는 정책 상수 묶음.
type Policy struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration // 0 이면 MaxDelaySeconds 만 적용
	MaxRetries uint32
}

// Delay 는 BackoffDelay 를 time.Duration 으로 바꾸고 MaxDelay 를 추가로 적용한다.
func (p Policy) Delay(attempt uint32) time.Duration {
	d := time.Duration(BackoffDelay(attempt, p.BaseDelay.Seconds()) * float64(time.Second))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// State 는 요청 1건의 재시도 상태. 요청마다 만들고 성공/소진 시 버린다.
type State struct {
	Policy  Policy
	Attempt uint32
}

// Next 는 재시도 가능하면 대기 시간과 true 를 돌려주고 attempt 를 증가시킨다.
func (s *State) Next() (time.Duration, bool) {
	if !ShouldRetry(s.Attempt, s.Policy.MaxRetries) {
		return 0, false
	}
	d := s.Policy.Delay(s.Attempt)
	s.Attempt++
	return d, true
}
