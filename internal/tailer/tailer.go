package tailer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/watcher"
)

// Tailer follows workflow log files and emits newly appended lines.
type Tailer struct {
	mu     sync.Mutex
	files  map[string]*trackedFile
	out    chan model.RawLine
	ckpt   *Checkpoint
	log    *zap.Logger
	events <-chan watcher.Event
	watch  *watcher.Watcher
	reopen chan string // rotated paths found again by reconnect
}

// trackedFile is only touched from the Start goroutine. offset is the end of
// the last newline-terminated line emitted; a line still being written stays
// beyond it and is read again on the next event.
type trackedFile struct {
	path   string
	file   *os.File
	offset int64
}

// New creates a Tailer that reads events from the given Watcher.
func New(w *watcher.Watcher, ckpt *Checkpoint, log *zap.Logger) *Tailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tailer{
		files:  make(map[string]*trackedFile),
		out:    make(chan model.RawLine, 512),
		ckpt:   ckpt,
		log:    log,
		events: w.Events,
		watch:  w,
		reopen: make(chan string),
	}
}

// Lines returns the channel where raw log lines are sent.
func (t *Tailer) Lines() <-chan model.RawLine {
	return t.out
}

// Start begins processing watcher events. Blocks until context is cancelled.
func (t *Tailer) Start(ctx context.Context) {
	defer close(t.out)

	for _, p := range t.watch.Paths() {
		t.openFile(p)
	}

	saveTicker := time.NewTicker(5 * time.Second)
	defer saveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.saveCheckpoint()
			t.closeAll()
			return

		case ev, ok := <-t.events:
			if !ok {
				return
			}
			t.handleEvent(ctx, ev)

		case path := <-t.reopen:
			t.closeFile(path)
			t.ckpt.Set(path, 0)
			t.openFile(path)
			t.readNewLines(ctx, path)

		case <-saveTicker.C:
			t.saveCheckpoint()
		}
	}
}

// handleEvent dispatches watcher events to the appropriate handler.
func (t *Tailer) handleEvent(ctx context.Context, ev watcher.Event) {
	switch {
	case ev.Op&fsnotify.Write != 0:
		t.readNewLines(ctx, ev.Path)

	case ev.Op&fsnotify.Create != 0:
		// New file appeared (ecflow rotates its log on checkpoint).
		t.closeFile(ev.Path)
		t.ckpt.Set(ev.Path, 0)
		t.openFile(ev.Path)
		t.readNewLines(ctx, ev.Path)

	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		t.closeFile(ev.Path)
		go t.reconnect(ctx, ev.Path)
	}
}

// openFile opens a file for tailing, resuming from the checkpointed offset.
func (t *Tailer) openFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.files[path]; exists {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		t.log.Warn("cannot open log file", zap.String("path", path), zap.Error(err))
		return
	}

	// Resume from checkpoint or start at end of file. A checkpoint past
	// the end belongs to an older file and restarts from the beginning.
	size, _ := f.Seek(0, io.SeekEnd)
	offset := size
	if saved, ok := t.ckpt.Get(path); ok {
		offset = saved
		if saved > size {
			t.log.Info("checkpoint beyond end of file, reading from start",
				zap.String("path", path), zap.Int64("offset", saved), zap.Int64("size", size))
			offset = 0
		}
	}

	t.files[path] = &trackedFile{
		path:   path,
		file:   f,
		offset: offset,
	}
}

// readNewLines emits the complete lines between the last offset and EOF.
// A trailing line without its newline is left for the next call.
func (t *Tailer) readNewLines(ctx context.Context, path string) {
	t.mu.Lock()
	tf, ok := t.files[path]
	t.mu.Unlock()
	if !ok {
		return
	}

	if info, err := tf.file.Stat(); err == nil && info.Size() < tf.offset {
		t.log.Info("log file truncated, reading from start",
			zap.String("path", path), zap.Int64("offset", tf.offset), zap.Int64("size", info.Size()))
		tf.offset = 0
	}
	if _, err := tf.file.Seek(tf.offset, io.SeekStart); err != nil {
		t.log.Warn("seek failed", zap.String("path", path), zap.Error(err))
		return
	}

	r := bufio.NewReaderSize(tf.file, 64*1024)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.log.Warn("read error", zap.String("path", path), zap.Error(err))
			} else if len(line) > maxLineSize {
				t.log.Warn("skipping overlong unterminated line", zap.String("path", path), zap.Int("bytes", len(line)))
				tf.offset += int64(len(line))
			}
			break
		}
		tf.offset += int64(len(line))
		select {
		case t.out <- model.RawLine{Text: strings.TrimRight(line, "\r\n"), Source: path}:
		case <-ctx.Done():
			t.ckpt.Set(path, tf.offset)
			return
		}
	}
	t.ckpt.Set(path, tf.offset)
}

// closeFile releases a tracked file.
func (t *Tailer) closeFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tf, ok := t.files[path]; ok {
		tf.file.Close()
		delete(t.files, path)
	}
}

// reconnect polls for a file to reappear after rotation (up to 5 retries)
// and hands it back to Start, which reads it from the start.
func (t *Tailer) reconnect(ctx context.Context, path string) {
	for i := 0; i < 5; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
		if _, err := os.Stat(path); err == nil {
			t.log.Info("reconnected to rotated file", zap.String("path", path))
			_ = t.watch.ReWatch(path)
			select {
			case t.reopen <- path:
			case <-ctx.Done():
			}
			return
		}
	}
	t.log.Warn("gave up reconnecting", zap.String("path", path), zap.Int("retries", 5))
}

// saveCheckpoint persists the current offsets to disk.
func (t *Tailer) saveCheckpoint() {
	if err := t.ckpt.Save(); err != nil {
		t.log.Warn("checkpoint save failed", zap.Error(err))
	}
}

// closeAll closes all tracked file handles.
func (t *Tailer) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for path, tf := range t.files {
		tf.file.Close()
		delete(t.files, path)
	}
}
