package datarecording

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/HaseebLUMS/tree-sim/latency"
)

// WriteLatencies writes one latency in seconds per line, in arrival order.
func WriteLatencies(w io.Writer, log *latency.Log) error {
	bw := bufio.NewWriter(w)

	buf := make([]byte, 0, 32)
	for _, s := range log.Seconds() {
		buf = strconv.AppendFloat(buf[:0], s, 'g', -1, 64)
		buf = append(buf, '\n')

		_, err := bw.Write(buf)
		if err != nil {
			return err
		}
	}

	return bw.Flush()
}

// SaveText writes the log to path, replacing any existing file.
func SaveText(path string, log *latency.Log) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	err = WriteLatencies(f, log)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
