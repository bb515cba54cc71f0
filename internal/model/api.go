package model

import (
	"errors"

	json "github.com/goccy/go-json"
)

// DevSessionToken 은 dev 모드에서 네트워크 없이 발급하는 세션 토큰.
const DevSessionToken = "dev"

// SDKVersion 은 sessions/start 의 sdkVersion 필드 값.
const SDKVersion = "0.4.0"

// 세션 종료 사유.
const (
	EndReasonEnded   = "ended"
	EndReasonCrashed = "crashed"
)

// StartSessionPayload 는 POST /v1/sessions/start 본문.
type StartSessionPayload struct {
	ClientVersion string `json:"clientVersion"`
	SDKVersion    string `json:"sdkVersion"`
	PlayerID      string `json:"playerId,omitempty"`
	Platform      string `json:"platform,omitempty"`
	OS            string `json:"os,omitempty"`
	CPUFamily     string `json:"cpuFamily,omitempty"`
	Cores         string `json:"cores,omitempty"`
	Memory        string `json:"memory,omitempty"`
	GPU           string `json:"gpu,omitempty"`
}

// StartSessionResponse 는 sessions/start 성공 응답.
type StartSessionResponse struct {
	SessionToken string `json:"sessionToken"`
}

// ErrorBody 는 서버 에러 envelope ({code, message}).
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ErrorBody) Error() string {
	return e.Code + ": " + e.Message
}

// IDResponse 는 feedback 생성 응답 ({id}).
type IDResponse struct {
	ID string `json:"id"`
}

// EndSessionPayload 는 POST /v1/sessions/end 본문.
type EndSessionPayload struct {
	Reason string `json:"reason"`
}

// FeedbackPayload 는 POST /v1/feedback 본문.
type FeedbackPayload struct {
	Message   string `json:"message"`
	ElapsedMs uint64 `json:"elapsedMs"`
	Question  string `json:"question,omitempty"`
	Category  string `json:"category"`
}

// ErrMalformedResponse 는 성공/에러 어느 쪽으로도 해석할 수 없는 응답.
var ErrMalformedResponse = errors.New("malformed response")

// DecodeStartSession 은 sessions/start 응답을 해석한다.
//   - {sessionToken} → 토큰
//   - {code, message} → ErrorBody (error)
//   - 그 외 → ErrMalformedResponse
func DecodeStartSession(body []byte) (string, error) {
	var v struct {
		SessionToken string `json:"sessionToken"`
		Code         string `json:"code"`
		Message      string `json:"message"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", errors.Join(ErrMalformedResponse, err)
	}
	if v.SessionToken != "" {
		return v.SessionToken, nil
	}
	if v.Code != "" || v.Message != "" {
		return "", ErrorBody{Code: v.Code, Message: v.Message}
	}
	return "", ErrMalformedResponse
}
