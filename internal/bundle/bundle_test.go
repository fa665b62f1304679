package bundle

import (
	"bytes"
	"testing"
	"time"

	"github.com/1kastner/sherpa/pkg/model"
)

func testSnapshot() *Snapshot {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	return &Snapshot{
		Study: &model.Study{
			ID:                "st_abc",
			Name:              "mnist-tuning",
			State:             model.StudyStateFinished,
			MinResource:       1,
			MaxResource:       9,
			Eta:               3,
			MaxFinishedTrials: 2,
			CreatedAt:         now,
		},
		Trials: []model.Trial{
			{ID: 1, Rung: 0, ResourceTo: 1, State: model.TrialStateCompleted,
				Parameters: model.ParameterSet{"lr": 0.01}, CreatedAt: now},
			{ID: 2, Rung: 1, ResourceFrom: 1, ResourceTo: 3, ParentID: 1,
				State: model.TrialStateCompleted, Parameters: model.ParameterSet{"lr": 0.01}, CreatedAt: now},
		},
		Observations: []model.Observation{
			{TrialID: 1, Rung: 0, Objective: 0.7, RecordedAt: now},
			{TrialID: 2, Rung: 1, Objective: 0.85, RecordedAt: now},
		},
		Best: &BestEntry{
			Observation: model.Observation{TrialID: 2, Rung: 1, Objective: 0.85, RecordedAt: now},
			Parameters:  model.ParameterSet{"lr": 0.01},
		},
	}
}

func TestExportImport(t *testing.T) {
	snap := testSnapshot()

	var buf bytes.Buffer
	if err := Export(&buf, snap); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	got, err := Import(&buf)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if got.Study.ID != "st_abc" || got.Study.State != model.StudyStateFinished {
		t.Errorf("study = %+v", got.Study)
	}
	if len(got.Trials) != 2 {
		t.Fatalf("len(trials) = %d, want 2", len(got.Trials))
	}
	if got.Trials[1].ParentID != 1 {
		t.Errorf("trial 2 parent = %d, want 1", got.Trials[1].ParentID)
	}
	if len(got.Observations) != 2 {
		t.Fatalf("len(observations) = %d, want 2", len(got.Observations))
	}
	if got.Best == nil || got.Best.Observation.Objective != 0.85 {
		t.Errorf("best = %+v", got.Best)
	}
}

func TestExport_NoBest(t *testing.T) {
	snap := testSnapshot()
	snap.Best = nil
	snap.Observations = nil

	var buf bytes.Buffer
	if err := Export(&buf, snap); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	got, err := Import(&buf)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if got.Best != nil {
		t.Errorf("best = %+v, want nil", got.Best)
	}
}

func TestExport_RequiresStudy(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, &Snapshot{}); err == nil {
		t.Error("Export() without a study succeeded")
	}
}

func TestImport_NotAnArchive(t *testing.T) {
	if _, err := Import(bytes.NewReader([]byte("not gzip"))); err == nil {
		t.Error("Import() of garbage succeeded")
	}
}
