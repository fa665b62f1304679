package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Checkpoints stores trial checkpoints on the local filesystem, one file per
// trial under a per-study directory. The scheduler only ships the parent
// trial id; the bytes themselves never leave the worker.
type Checkpoints struct {
	dir string
}

// NewCheckpoints creates a checkpoint store rooted at dir.
func NewCheckpoints(dir string) *Checkpoints {
	return &Checkpoints{dir: dir}
}

func (c *Checkpoints) path(studyID string, trialID int) string {
	return filepath.Join(c.dir, studyID, strconv.Itoa(trialID)+".ckpt")
}

// Save writes a trial's checkpoint. A nil checkpoint is a no-op.
func (c *Checkpoints) Save(studyID string, trialID int, data []byte) error {
	if data == nil {
		return nil
	}
	path := c.path(studyID, trialID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Load reads a parent trial's checkpoint. Returns nil when trialID is 0 or
// no checkpoint exists; a missing checkpoint just means training from
// scratch, which every trainer supports.
func (c *Checkpoints) Load(studyID string, trialID int) []byte {
	if trialID == 0 {
		return nil
	}
	data, err := os.ReadFile(c.path(studyID, trialID))
	if err != nil {
		return nil
	}
	return data
}
