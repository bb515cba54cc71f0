package archive

import (
	"github.com/indigauge/indigauge-go/internal/model"
	"github.com/indigauge/indigauge-go/internal/pool"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// Record 는 archive 파일의 한 줄.
type Record struct {
	ArchivedAt int64  `json:"archivedAt"` // unix seconds
	Instance   string `json:"instance"`
	model.EventPayload
}

// Encoder 는 이벤트 배치를 JSONL → gzip 형태로 직렬화하는 컴포넌트.
//
// 특징:
//   - goccy/json 기반 JSON 인코딩
//   - gzip.Writer + bytes.Buffer 재사용(pool 기반)
//   - 결과는 새로운 []byte 로 복사해 호출자에게 소유권을 넘김
type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// EncodeJSONLGZ 는 레코드를 한 줄씩 JSON 인코딩한 뒤 gzip 압축해 반환한다.
func (e *Encoder) EncodeJSONLGZ(records []Record) ([]byte, error) {

	// ------------------------------------------------------------
	// 1) 결과 버퍼 / gzip.Writer 를 pool 에서 가져온다.
	// ------------------------------------------------------------
	buf := pool.GetBuffer()
	gz := pool.GzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)

	// ------------------------------------------------------------
	// 2) JSONL 인코딩 (gzip writer 에 직결)
	// ------------------------------------------------------------
	enc := json.NewEncoder(gz)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			_ = gz.Close()
			pool.GzipPool.Put(gz)
			pool.PutBuffer(buf)
			return nil, err
		}
	}

	// ------------------------------------------------------------
	// 3) gzip footer flush & close
	// ------------------------------------------------------------
	if err := gz.Close(); err != nil {
		pool.GzipPool.Put(gz)
		pool.PutBuffer(buf)
		return nil, err
	}
	pool.GzipPool.Put(gz)

	// ------------------------------------------------------------
	// 4) caller 소유 slice 로 복사 후 버퍼 반환
	// ------------------------------------------------------------
	data := pool.CopyBytes(buf)
	pool.PutBuffer(buf)

	return data, nil
}
