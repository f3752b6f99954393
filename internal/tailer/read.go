package tailer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
)

// maxLineSize bounds a single log line; alter commands can carry long values.
const maxLineSize = 1 << 20

// ReadAll reads every line of the given files in order and sends them to out.
// It stops at the first file that cannot be read or when ctx is cancelled.
// out is not closed.
func ReadAll(ctx context.Context, paths []string, out chan<- model.RawLine) error {
	for _, path := range paths {
		if err := readFile(ctx, path, out); err != nil {
			return err
		}
	}
	return nil
}

func readFile(ctx context.Context, path string, out chan<- model.RawLine) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if err := scanLines(ctx, f, path, out); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// scanLines sends each line of r to out, tagged with source.
func scanLines(ctx context.Context, r io.Reader, source string, out chan<- model.RawLine) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		select {
		case out <- model.RawLine{Text: scanner.Text(), Source: source}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}
