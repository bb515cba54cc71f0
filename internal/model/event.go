// internal/model/event.go
package model

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// ErrSerialization 는 metadata 를 JSON 으로 인코딩할 수 없을 때의 에러.
// 파이프라인은 이 에러를 받으면 이벤트를 drop 하고 로그만 남긴다.
var ErrSerialization = errors.New("metadata serialization failed")

// Level 은 이벤트 심각도.
type Level string

const (
	LevelTrace Level = "trace"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// Valid 는 알려진 레벨인지 확인한다.
func (l Level) Valid() bool {
	switch l {
	case LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal:
		return true
	}
	return false
}

// WantsContext 는 file/line context 를 붙여야 하는 레벨인지 여부 (warn/error/fatal).
func (l Level) WantsContext() bool {
	return l == LevelWarn || l == LevelError || l == LevelFatal
}

// EventPayload
// ------------------------------------------------------------
// 호출 지점에서 만들어져 서버로 전송되는 단일 이벤트.
// 생성 이후에는 변경하지 않는다 (metadata 도 생성 시점에 JSON 으로 고정).
// Queue → Buffer → Batch 요청까지 그대로 전달된다.
type EventPayload struct {
	EventType      string          `json:"eventType"`          // "namespace.event"
	Metadata       json.RawMessage `json:"metadata,omitempty"` // 생성 시점 스냅샷
	Level          Level           `json:"level"`
	ElapsedMs      uint64          `json:"elapsedMs"`      // 세션 시작 이후 경과 ms
	IdempotencyKey string          `json:"idempotencyKey"` // 서버 측 중복 제거용 랜덤 키
	Context        *EventContext   `json:"context,omitempty"`
}

// EventContext 는 warn/error/fatal 이벤트의 발생 위치.
type EventContext struct {
	File   string `json:"file"`
	Line   uint32 `json:"line"`
	Module string `json:"module,omitempty"`
}

// BatchPayload 는 POST /v1/events/batch 본문.
type BatchPayload struct {
	Events []EventPayload `json:"events"`
}

// EncodeMetadata 는 임의의 값을 JSON 스냅샷으로 만든다.
// nil 이면 metadata 필드 자체를 생략한다.
func EncodeMetadata(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%w: invalid raw json", ErrSerialization)
		}
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}
