package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"

	apperrors "github.com/modelbridge/gembridge/internal/errors"
)

var sseBufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

var (
	sseDataPrefix  = []byte("data: ")
	sseErrorPrefix = []byte("event: error\ndata: ")
	sseSuffix      = []byte("\n\n")
	sseDone        = []byte("data: [DONE]\n\n")
)

// WriteSSEData writes a standard SSE "data" frame.
func WriteSSEData(w io.Writer, data []byte) {
	if w == nil || len(data) == 0 {
		return
	}
	writeSSEFrame(w, sseDataPrefix, data)
}

// WriteSSEError writes an in-band SSE error event carrying the translated
// OpenAI error body. Used once response headers are already on the wire and
// the HTTP status can no longer change.
func WriteSSEError(w io.Writer, err error) {
	if w == nil {
		return
	}
	_, body := apperrors.Translate(err)
	payload, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		payload = []byte(`{"error":{"message":"stream failed","type":"api_error","code":"internal_error"}}`)
	}
	writeSSEFrame(w, sseErrorPrefix, payload)
}

// WriteSSEDone writes the standard SSE done marker.
func WriteSSEDone(w io.Writer) {
	if w == nil {
		return
	}
	_, _ = w.Write(sseDone)
}

func writeSSEFrame(w io.Writer, prefix, data []byte) {
	buf := sseBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	buf.Grow(len(prefix) + len(data) + len(sseSuffix))
	_, _ = buf.Write(prefix)
	_, _ = buf.Write(data)
	_, _ = buf.Write(sseSuffix)
	_, _ = w.Write(buf.Bytes())
	buf.Reset()
	sseBufferPool.Put(buf)
}
