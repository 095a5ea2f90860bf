package tracing

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/rs/xid"
)

// ErrTraceExists is returned when the trace file is already on disk.
var ErrTraceExists = errors.New("trace file already exists")

// CSVTraceWriter is a trace writer that can store the tasks into a CSV file.
type CSVTraceWriter struct {
	path string
	file *os.File
	buf  *bufio.Writer

	tasks      []Task
	bufferSize int
}

// NewCSVTraceWriter creates a new CSVTraceWriter. The file is path.csv.
func NewCSVTraceWriter(path string) *CSVTraceWriter {
	return &CSVTraceWriter{
		path:       path,
		bufferSize: 1000,
	}
}

// Init creates the trace file and writes the header. An existing file is
// never overwritten.
func (t *CSVTraceWriter) Init() error {
	if t.path == "" {
		t.path = "tree_sim_trace_" + xid.New().String()
	}

	filename := t.path + ".csv"

	_, err := os.Stat(filename)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrTraceExists, filename)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	t.file = file
	t.buf = bufio.NewWriter(file)

	_, err = fmt.Fprintf(t.buf, "ID, Kind, What, Where, Start, End\n")

	return err
}

// Filename returns the name of the trace file.
func (t *CSVTraceWriter) Filename() string {
	return t.path + ".csv"
}

// Write buffers a task.
func (t *CSVTraceWriter) Write(task Task) error {
	t.tasks = append(t.tasks, task)
	if len(t.tasks) >= t.bufferSize {
		return t.Flush()
	}

	return nil
}

// Flush writes the buffered tasks to the CSV file.
func (t *CSVTraceWriter) Flush() error {
	for _, task := range t.tasks {
		_, err := fmt.Fprintf(t.buf, "%s, %s, %s, %s, %.9f, %.9f\n",
			task.ID,
			task.Kind,
			task.What,
			task.Where,
			task.StartTime.Seconds(),
			task.EndTime.Seconds(),
		)
		if err != nil {
			return err
		}
	}

	t.tasks = nil

	return t.buf.Flush()
}

// Close flushes and closes the file.
func (t *CSVTraceWriter) Close() error {
	err := t.Flush()
	if err != nil {
		return err
	}

	return t.file.Close()
}
