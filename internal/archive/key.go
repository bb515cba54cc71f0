package archive

import (
	"fmt"
	"sync/atomic"
	"time"
)

// key.go
// ------------------------------------------------------------
// 파일명 규칙:
//
//	<unix>_<instance>_<counter>.jsonl.gz
//
// S3 key 규칙 (UTC 파티션):
//
//	<prefix>/dt=<YYYY-MM-DD>/hr=<HH>/<filename>
//
// 정렬하면 곧 시간 순 정렬이다.
var globalCounter uint64

// NextCounter 는 1,000,000 에서 0 으로 돌아가는 순차 번호.
func NextCounter() uint64 {
	return atomic.AddUint64(&globalCounter, 1) % 1_000_000
}

// NewFilename 은 t 시각 기준 파일명을 만든다.
func NewFilename(instanceID string, t time.Time) string {
	return fmt.Sprintf("%d_%s_%06d.jsonl.gz", t.Unix(), instanceID, NextCounter())
}

// BuildKey 는 파티션 prefix 를 붙인 S3 key 를 만든다.
func BuildKey(prefix string, t time.Time, filename string) string {
	u := t.UTC()
	return fmt.Sprintf("%s/dt=%s/hr=%s/%s", prefix, u.Format("2006-01-02"), u.Format("15"), filename)
}
