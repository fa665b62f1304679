// Package bundle packs a study's full history into a portable tar.gz
// archive: the study row, every trial, the observation log, and the best
// result. The archive is self-contained, so a finished search can be
// shared or archived without the server's database.
package bundle

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/1kastner/sherpa/pkg/model"
)

// Snapshot is everything an archive records about a study.
type Snapshot struct {
	Study        *model.Study        `json:"study"`
	Trials       []model.Trial       `json:"trials"`
	Observations []model.Observation `json:"observations"`

	// Best is nil while nothing has been reported.
	Best *BestEntry `json:"best,omitempty"`
}

// BestEntry pairs the best observation with its configuration.
type BestEntry struct {
	Observation model.Observation  `json:"observation"`
	Parameters  model.ParameterSet `json:"parameters"`
}

// Export writes the snapshot as a gzipped tar archive, one JSON file per
// section.
func Export(w io.Writer, snap *Snapshot) error {
	if snap.Study == nil {
		return fmt.Errorf("snapshot has no study")
	}

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	files := []struct {
		name string
		data any
	}{
		{"study.json", snap.Study},
		{"trials.json", snap.Trials},
		{"observations.json", snap.Observations},
	}
	if snap.Best != nil {
		files = append(files, struct {
			name string
			data any
		}{"best.json", snap.Best})
	}

	now := time.Now().UTC()
	for _, f := range files {
		data, err := json.MarshalIndent(f.data, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.name, err)
		}
		hdr := &tar.Header{
			Name:    f.name,
			Mode:    0o644,
			Size:    int64(len(data)),
			ModTime: now,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write header %s: %w", f.name, err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}
	return nil
}

// Import reads an archive produced by Export.
func Import(r io.Reader) (*Snapshot, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	snap := &Snapshot{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", hdr.Name, err)
		}

		switch hdr.Name {
		case "study.json":
			snap.Study = &model.Study{}
			err = json.Unmarshal(data, snap.Study)
		case "trials.json":
			err = json.Unmarshal(data, &snap.Trials)
		case "observations.json":
			err = json.Unmarshal(data, &snap.Observations)
		case "best.json":
			snap.Best = &BestEntry{}
			err = json.Unmarshal(data, snap.Best)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", hdr.Name, err)
		}
	}

	if snap.Study == nil {
		return nil, fmt.Errorf("archive has no study.json")
	}
	return snap, nil
}
