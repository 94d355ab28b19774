package jsoncodec

import (
	"io"
	"sync"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// LineEncoder writes one JSON document per line. Encode is safe for
// concurrent use; sinks receive records from every goroutine that posts.
type LineEncoder struct {
	mu  sync.Mutex
	enc sonic.Encoder
}

func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{enc: defaultConfig.NewEncoder(w)}
}

func (l *LineEncoder) Encode(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(v)
}
