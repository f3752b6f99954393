package tailer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"
)

// checkpointData is the on-disk JSON structure for persisted offsets.
type checkpointData struct {
	Offsets map[string]int64 `json:"offsets"`
	SavedAt time.Time        `json:"saved_at,omitempty"`
}

// Checkpoint persists log file read offsets so following can resume after a
// restart without re-emitting lines.
type Checkpoint struct {
	mu   sync.RWMutex
	path string
	data checkpointData
}

// NewCheckpoint creates or loads a checkpoint file at the given path. A
// missing file starts an empty checkpoint; a corrupt one is an error.
func NewCheckpoint(path string) (*Checkpoint, error) {
	c := &Checkpoint{
		path: path,
		data: checkpointData{Offsets: make(map[string]int64)},
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read checkpoint: %w", err)
	default:
		if err := json.Unmarshal(raw, &c.data); err != nil {
			return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
		}
	}
	if c.data.Offsets == nil {
		c.data.Offsets = make(map[string]int64)
	}

	return c, nil
}

// Get returns the saved offset for a file path.
func (c *Checkpoint) Get(path string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data.Offsets[path]
	return v, ok
}

// Set records the current offset for a file path.
func (c *Checkpoint) Set(path string, offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Offsets[path] = offset
}

// Save writes the checkpoint data to disk atomically.
func (c *Checkpoint) Save() error {
	c.mu.Lock()
	c.data.SavedAt = time.Now().UTC()
	raw, err := json.MarshalIndent(c.data, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
