package session

// State 는 세션 상태.
//
//	Uninitialized → Starting → Active → Ended
//	                    ↘ Failed
//	Uninitialized → Skipped (disabled 모드)
type State int

const (
	Uninitialized State = iota
	Starting
	Active
	Ended
	Skipped
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Ended:
		return "ended"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// InitKind 는 Start 결과 신호의 종류.
type InitKind int

const (
	InitSuccess InitKind = iota + 1
	InitSkipped
	InitFailure
	InitUnexpectedFailure
)

func (k InitKind) String() string {
	switch k {
	case InitSuccess:
		return "success"
	case InitSkipped:
		return "skipped"
	case InitFailure:
		return "failure"
	case InitUnexpectedFailure:
		return "unexpected_failure"
	}
	return "unknown"
}

// InitDone 은 세션 시작 시도가 끝났음을 알리는 신호.
type InitDone struct {
	Kind   InitKind
	Reason string
}
