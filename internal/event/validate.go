// internal/event/validate.go
package event

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrInvalidFormat 는 모든 event type 형식 오류의 공통 sentinel.
// 파이프라인은 사유와 관계없이 "drop + 로그" 로 처리하고,
// 진단이 필요한 호출자는 errors.As 로 *FormatError 의 Reason 을 꺼낸다.
var ErrInvalidFormat = errors.New("invalid event type")

// Reason 은 형식 오류의 구체적인 사유.
type Reason int

const (
	ReasonTooShort Reason = iota + 1
	ReasonBadCharacter
	ReasonMultipleDots
	ReasonMissingDot
	ReasonDotAtEdge
)

func (r Reason) String() string {
	switch r {
	case ReasonTooShort:
		return "too short (expected 'a.b')"
	case ReasonBadCharacter:
		return "only letters and a single '.' are allowed"
	case ReasonMultipleDots:
		return "multiple '.' found"
	case ReasonMissingDot:
		return "must contain one '.'"
	case ReasonDotAtEdge:
		return "'.' cannot be the first or last character"
	}
	return "unknown"
}

// FormatError 는 ErrInvalidFormat 을 감싼 상세 에러.
type FormatError struct {
	EventType string
	Reason    Reason
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidFormat, e.EventType, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrInvalidFormat }

// ValidateEventType
// ------------------------------------------------------------
// "namespace.event" 형식을 검사한다. 검사 순서:
//  1. 길이 >= 3
//  2. 모든 문자가 ASCII 영문자 또는 '.'
//  3. '.' 은 최대 1개
//  4. '.' 이 반드시 있어야 함
//  5. '.' 은 처음/마지막 문자가 아님
//
// 부수효과 없음. 빌드 타임 검사기(cmd/igvet)와 런타임이 같은 함수를 쓴다.
func ValidateEventType(s string) error {
	if len(s) < 3 {
		return &FormatError{EventType: s, Reason: ReasonTooShort}
	}

	dot := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c == '.':
			if dot >= 0 {
				return &FormatError{EventType: s, Reason: ReasonMultipleDots}
			}
			dot = i
		default:
			return &FormatError{EventType: s, Reason: ReasonBadCharacter}
		}
	}

	if dot < 0 {
		return &FormatError{EventType: s, Reason: ReasonMissingDot}
	}
	if dot == 0 || dot == len(s)-1 {
		return &FormatError{EventType: s, Reason: ReasonDotAtEdge}
	}
	return nil
}

// ------------------------------------------------------------
// 런타임 캐시
//
// 같은 event type 문자열은 보통 소수의 리터럴이 반복 사용되므로
// 최초 1회만 검사하고 결과를 sync.Map 에 보관한다.
// sync.Map 의 읽기 경로는 lock-free 라 producer hot path 에 적합.
// 동적으로 생성된 문자열이 무한히 늘어나는 것을 막기 위해
// 캐시 크기는 checkCacheLimit 으로 제한한다 (초과분은 매번 검사).
// ------------------------------------------------------------

const checkCacheLimit = 4096

var (
	checkCache sync.Map // string → cachedResult
	checkSize  atomic.Int64
)

type cachedResult struct{ err error }

// Check 는 캐시를 거쳐 ValidateEventType 결과를 돌려준다.
func Check(s string) error {
	if v, ok := checkCache.Load(s); ok {
		return v.(cachedResult).err
	}
	err := ValidateEventType(s)

	// 동시에 여러 goroutine 이 들어오면 limit 을 약간 넘을 수 있으나 무해하다.
	if checkSize.Load() < checkCacheLimit {
		if _, loaded := checkCache.LoadOrStore(s, cachedResult{err: err}); !loaded {
			checkSize.Add(1)
		}
	}

	return err
}
