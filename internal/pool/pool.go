package pool

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// ---------------------------------------------------------------
// Pool 구성 목적
//
// flush 마다 batch JSON 인코딩, archive 쪽 gzip 인코딩이 반복되므로
// 버퍼/압축기를 재사용해 게임 프레임 중 GC 스파이크를 줄인다.
// ---------------------------------------------------------------

var (
	// BufferPool:
	//   - batch JSON / gzip 결과를 담는 임시 버퍼
	//   - 초기 용량 64KB (BatchSize 64 기준 대부분 수용)
	//   - MaxBufferCap 초과 버퍼는 풀에 넣지 않음
	BufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 64*1024))
		},
	}

	// GzipPool:
	//   - gzip.Writer 재사용
	//   - BestSpeed: archive 업로드는 게임 프로세스 안에서 돌기 때문에 CPU 우선
	GzipPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
			return w
		},
	}
)

// Pool에 되돌려줄 최대 버퍼 용량
const MaxBufferCap = 1 * 1024 * 1024 // 1MB

// GetBuffer 는 비워진 버퍼를 꺼낸다.
func GetBuffer() *bytes.Buffer {
	buf := BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer:
//   - 1MB 이하이면 풀에 재사용
//   - 초대형 버퍼는 GC 에 맡김
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= MaxBufferCap {
		buf.Reset()
		BufferPool.Put(buf)
	}
}

// CopyBytes 는 풀 버퍼 내용을 호출자 소유 slice 로 복사한다.
// 풀 버퍼를 그대로 넘기면 재사용 시 데이터가 오염된다.
func CopyBytes(buf *bytes.Buffer) []byte {
	raw := buf.Bytes()
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}
