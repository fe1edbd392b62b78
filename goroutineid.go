package syncplus

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

var (
	// Pool of reusable buffers for the stack header read in GetGoroutineID.
	// Uses pointer to slice to prevent copying.
	bufferPool = sync.Pool{
		New: func() interface{} {
			b := make([]byte, 64)
			return &b
		},
	}

	goroutinePrefix = []byte("goroutine ")
)

// GetGoroutineID returns the runtime id of the calling goroutine, read from
// the first line of its stack trace ("goroutine 42 [running]:").
// It returns 0 if the header cannot be parsed.
func GetGoroutineID() uint64 {
	bp := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bp)

	buf := *bp
	n := runtime.Stack(buf, false)
	return parseGoroutineID(buf[:n])
}

func parseGoroutineID(header []byte) uint64 {
	header = bytes.TrimPrefix(header, goroutinePrefix)
	if i := bytes.IndexByte(header, ' '); i > 0 {
		header = header[:i]
	}
	id, err := strconv.ParseUint(string(header), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
