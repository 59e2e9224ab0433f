package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/handsignal/internal/detector"
	"github.com/ayusman/handsignal/internal/gesture"
)

// recording is a scripted camera session: one named pose per frame and the
// gestures the pipeline should emit for it.
type recording struct {
	Name       string   `json:"name"`
	IntervalMS int      `json:"interval_ms"`
	Frames     []string `json:"frames"`
	Want       []string `json:"want"`
}

func (r recording) interval() time.Duration {
	return time.Duration(r.IntervalMS) * time.Millisecond
}

// poses maps recording pose names to landmark fixtures. The empty name is a
// frame with no hands.
var poses = map[string]func() detector.Result{
	"":               func() detector.Result { return detector.Result{} },
	"thumbs_up":      func() detector.Result { return detector.Result{detector.ThumbsUpLandmarks()} },
	"thumbs_down":    func() detector.Result { return detector.Result{detector.ThumbsDownLandmarks()} },
	"index_up":       func() detector.Result { return detector.Result{detector.IndexUpLandmarks()} },
	"peace":          func() detector.Result { return detector.Result{detector.PeaceLandmarks()} },
	"fist":           func() detector.Result { return detector.Result{detector.FistLandmarks()} },
	"crossed_wrists": detector.CrossedWristsLandmarks,
}

func (r recording) results() ([]detector.Result, error) {
	out := make([]detector.Result, 0, len(r.Frames))
	for i, name := range r.Frames {
		pose, ok := poses[name]
		if !ok {
			return nil, fmt.Errorf("%s: frame %d: unknown pose %q", r.Name, i, name)
		}
		out = append(out, pose())
	}
	return out, nil
}

func (r recording) wantGestures() ([]gesture.Gesture, error) {
	out := make([]gesture.Gesture, 0, len(r.Want))
	for _, label := range r.Want {
		g, err := gesture.Parse(label)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Name, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func loadRecordings() ([]recording, error) {
	data, err := os.ReadFile(filepath.Join("testdata", "recordings.json"))
	if err != nil {
		return nil, err
	}

	var file struct {
		Recordings []recording `json:"recordings"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse recordings: %w", err)
	}
	return file.Recordings, nil
}
