package asynclogger

import (
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// timestampLayout is the per-line timestamp, microsecond precision, local time
const timestampLayout = "2006-01-02 15:04:05.000000"

// Location identifies the call site of a log line
type Location struct {
	File string
	Line int
}

// Caller returns the Location of the function skip frames above the caller
// of Caller. Caller(0) is the function that calls Caller.
func Caller(skip int) Location {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Location{File: "???", Line: 0}
	}
	return Location{File: file, Line: line}
}

// scratchPool provides per-call formatting buffers so Log does not allocate
// a fresh record for every line.
var scratchPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 512)
		return &buf
	},
}

// appendRecord formats one line:
//
//	[2006-01-02 15:04:05.000000] [LEVEL] file:line message\n
//
// If the line is longer than maxLen it is cut to exactly maxLen bytes, the
// last of which is the newline. The second result reports truncation.
func appendRecord(dst []byte, now time.Time, level Level, loc Location, maxLen int, format string, args []any) ([]byte, bool) {
	dst = append(dst, '[')
	dst = now.AppendFormat(dst, timestampLayout)
	dst = append(dst, "] ["...)
	dst = append(dst, level.String()...)
	dst = append(dst, "] "...)
	dst = append(dst, loc.File...)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, int64(loc.Line), 10)
	dst = append(dst, ' ')
	dst = fmt.Appendf(dst, format, args...)
	dst = append(dst, '\n')

	if maxLen > 0 && len(dst) > maxLen {
		dst = dst[:maxLen]
		dst[maxLen-1] = '\n'
		return dst, true
	}
	return dst, false
}
