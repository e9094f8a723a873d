//go:build !linux

package asynclogger

import "os"

// writeVectored writes all buffers to file in order (non-Linux fallback).
// Uses one Write per buffer; os.File.Write already retries short writes.
func writeVectored(file *os.File, buffers [][]byte) (int, error) {
	total := 0
	for _, buf := range buffers {
		if len(buf) == 0 {
			continue
		}
		n, err := file.Write(buf)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// syncData flushes file data to the device
func syncData(file *os.File) error {
	return file.Sync()
}
