package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/1kastner/sherpa/pkg/model"
)

// CommandTrainer shells out to a training program per trial. The trial is
// passed through the environment:
//
//	SHERPA_TRIAL_ID        trial id
//	SHERPA_STUDY_ID        study id (may be empty in-process)
//	SHERPA_PARAMS          configuration as JSON
//	SHERPA_RESOURCE_FROM   start of the resource interval
//	SHERPA_RESOURCE_TO     end of the resource interval
//	SHERPA_RESUME_FILE     path to the parent checkpoint, unset for fresh trials
//	SHERPA_CHECKPOINT_FILE path the program may write its own checkpoint to
//
// The program prints its result as the last line of stdout, JSON-encoded:
// {"objective": 0.93, "context": {"loss": 0.2}}.
type CommandTrainer struct {
	argv []string
}

// NewCommandTrainer creates a command trainer from an argv.
func NewCommandTrainer(argv []string) (*CommandTrainer, error) {
	if len(argv) == 0 {
		return nil, errors.New("command trainer requires a command")
	}
	return &CommandTrainer{argv: argv}, nil
}

type commandResult struct {
	Objective float64       `json:"objective"`
	Context   model.Context `json:"context"`
}

// Train runs the command for one trial and parses its result line.
func (c *CommandTrainer) Train(ctx context.Context, desc model.TrialDescriptor, resume []byte) (*Result, error) {
	dir, err := os.MkdirTemp("", "sherpa-trial-")
	if err != nil {
		return nil, fmt.Errorf("create trial dir: %w", err)
	}
	defer os.RemoveAll(dir)

	params, err := json.Marshal(desc.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}

	checkpointFile := filepath.Join(dir, "checkpoint")
	env := append(os.Environ(),
		"SHERPA_TRIAL_ID="+strconv.Itoa(desc.ID),
		"SHERPA_STUDY_ID="+desc.StudyID,
		"SHERPA_PARAMS="+string(params),
		"SHERPA_RESOURCE_FROM="+strconv.Itoa(desc.ResourceFrom),
		"SHERPA_RESOURCE_TO="+strconv.Itoa(desc.ResourceTo),
		"SHERPA_CHECKPOINT_FILE="+checkpointFile,
	)
	if len(resume) > 0 {
		resumeFile := filepath.Join(dir, "resume")
		if err := os.WriteFile(resumeFile, resume, 0o644); err != nil {
			return nil, fmt.Errorf("write resume checkpoint: %w", err)
		}
		env = append(env, "SHERPA_RESUME_FILE="+resumeFile)
	}

	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Env = env
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w (stderr: %s)",
			c.argv[0], err, strings.TrimSpace(stderr.String()))
	}

	res, err := parseResultLine(stdout.String())
	if err != nil {
		return nil, err
	}

	result := &Result{Objective: res.Objective, Context: res.Context}
	if checkpoint, err := os.ReadFile(checkpointFile); err == nil {
		result.Checkpoint = checkpoint
	}
	return result, nil
}

// parseResultLine decodes the last non-empty stdout line as the result.
func parseResultLine(output string) (*commandResult, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var res commandResult
		if err := json.Unmarshal([]byte(line), &res); err != nil {
			return nil, fmt.Errorf("parse result line %q: %w", line, err)
		}
		return &res, nil
	}
	return nil, errors.New("command produced no result line")
}
