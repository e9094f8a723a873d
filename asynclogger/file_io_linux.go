//go:build linux

package asynclogger

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// maxIovecs is the kernel's IOV_MAX; writev rejects longer vectors
const maxIovecs = 1024

// writeVectored writes all buffers to file in order using writev(2).
// Short writes are resumed where they stopped, so a single drain cycle
// costs one syscall in the common case instead of one per buffer.
func writeVectored(file *os.File, buffers [][]byte) (int, error) {
	if len(buffers) == 0 {
		return 0, nil
	}

	// Skip empty buffers; writev with zero-length iovecs is legal but useless
	pending := make([][]byte, 0, len(buffers))
	for _, buf := range buffers {
		if len(buf) > 0 {
			pending = append(pending, buf)
		}
	}

	rawConn, err := file.SyscallConn()
	if err != nil {
		return 0, err
	}

	total := 0
	for len(pending) > 0 {
		batch := pending
		if len(batch) > maxIovecs {
			batch = batch[:maxIovecs]
		}

		var n int
		var werr error
		cerr := rawConn.Write(func(fd uintptr) bool {
			n, werr = unix.Writev(int(fd), batch)
			return !errors.Is(werr, unix.EAGAIN)
		})
		if n > 0 {
			total += n
			pending = consumeIovecs(pending, n)
		}
		if cerr != nil {
			return total, cerr
		}
		if werr != nil {
			if errors.Is(werr, unix.EINTR) {
				continue
			}
			return total, werr
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// consumeIovecs drops the first n written bytes from bufs
func consumeIovecs(bufs [][]byte, n int) [][]byte {
	for len(bufs) > 0 {
		if n < len(bufs[0]) {
			bufs[0] = bufs[0][n:]
			return bufs
		}
		n -= len(bufs[0])
		bufs = bufs[1:]
	}
	return bufs
}

// syncData flushes file data to the device without forcing a metadata update
func syncData(file *os.File) error {
	rawConn, err := file.SyscallConn()
	if err != nil {
		return err
	}
	var serr error
	if cerr := rawConn.Control(func(fd uintptr) {
		serr = unix.Fdatasync(int(fd))
	}); cerr != nil {
		return cerr
	}
	return serr
}
