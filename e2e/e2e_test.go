package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/handsignal/internal/app"
	"github.com/ayusman/handsignal/internal/capture"
	"github.com/ayusman/handsignal/internal/detector"
	"github.com/ayusman/handsignal/internal/gesture"
	"github.com/ayusman/handsignal/internal/plugin"
	"github.com/ayusman/handsignal/internal/scheduler"
	"github.com/ayusman/handsignal/internal/server"
	"github.com/ayusman/handsignal/internal/store"
	"github.com/ayusman/handsignal/internal/timeutil"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// tickRecorder signals once per finished loop tick.
type tickRecorder struct {
	ticks chan struct{}
}

func newTickRecorder() *tickRecorder {
	return &tickRecorder{ticks: make(chan struct{}, 64)}
}

func (r *tickRecorder) signal() {
	select {
	case r.ticks <- struct{}{}:
	default:
	}
}

func (r *tickRecorder) FrameProcessed(time.Duration)   { r.signal() }
func (r *tickRecorder) FrameSkipped()                  { r.signal() }
func (r *tickRecorder) DetectError()                   { r.signal() }
func (r *tickRecorder) GestureEmitted(gesture.Gesture) {}

func (r *tickRecorder) step(t *testing.T, clock *timeutil.MockClock, d time.Duration) {
	t.Helper()
	clock.Advance(d)
	select {
	case <-r.ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("tick was not processed")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// TestE2E_Recordings plays every recorded session through the scheduler and
// checks the emitted gestures and the per-frame overlay state.
func TestE2E_Recordings(t *testing.T) {
	recordings, err := loadRecordings()
	if err != nil {
		t.Fatalf("loadRecordings() error = %v", err)
	}
	if len(recordings) == 0 {
		t.Fatal("no recordings found")
	}

	for _, rec := range recordings {
		t.Run(rec.Name, func(t *testing.T) {
			frames, err := rec.results()
			if err != nil {
				t.Fatal(err)
			}
			want, err := rec.wantGestures()
			if err != nil {
				t.Fatal(err)
			}

			clock := timeutil.NewMockClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
			det := detector.NewMockDetector()
			det.SetSequence(frames...)
			ticks := newTickRecorder()

			s := scheduler.New(det,
				scheduler.WithClock(clock),
				scheduler.WithFrameInterval(rec.interval()),
				scheduler.WithMetrics(ticks),
				scheduler.WithLogger(quietLogger),
			)

			cam := capture.NewMockCamera(nil, false)
			if err := cam.Open(); err != nil {
				t.Fatal(err)
			}
			defer cam.Close()

			var (
				mu  sync.Mutex
				got []gesture.Gesture
			)
			if err := s.Start(context.Background(), cam, func(g gesture.Gesture) {
				mu.Lock()
				got = append(got, g)
				mu.Unlock()
			}); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			defer s.Stop()
			waitFor(t, "running", func() bool { return s.Phase() == scheduler.PhaseRunning })

			for i, result := range frames {
				ticks.step(t, clock, rec.interval())

				st := s.Snapshot()
				if candidate := gesture.Classify(result); st.ActiveGesture != candidate {
					t.Errorf("frame %d: ActiveGesture = %v, want %v", i, st.ActiveGesture, candidate)
				}
				if len(result) == 0 && st.Confidence != nil {
					t.Errorf("frame %d: empty frame should carry no confidence", i)
				}
			}

			s.Stop()
			if !s.Snapshot().Cleared() {
				t.Error("state should be cleared after Stop")
			}

			mu.Lock()
			defer mu.Unlock()
			if len(got) != len(want) {
				t.Fatalf("emitted %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("event %d = %v, want %v", i, got[i], want[i])
				}
			}
		})
	}
}

// installPlugin writes a shell plugin that appends every request to
// requests.log in its own directory.
func installPlugin(t *testing.T, root string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := filepath.Join(root, "call-control")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	manifest, _ := json.Marshal(plugin.Manifest{
		Name:       "call-control",
		Version:    "1.0.0",
		Executable: "run.sh",
		Actions:    []string{"mute", "unmute", "camera-on", "camera-off", "hangup", "leave-meeting"},
	})
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), manifest, 0644); err != nil {
		t.Fatal(err)
	}

	script := "#!/bin/sh\nINPUT=$(cat)\necho \"$INPUT\" >> requests.log\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func readRequests(t *testing.T, dir string) []plugin.Request {
	t.Helper()

	f, err := os.Open(filepath.Join(dir, "requests.log"))
	if err != nil {
		t.Fatalf("plugin was never run: %v", err)
	}
	defer f.Close()

	var reqs []plugin.Request
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var req plugin.Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			t.Fatalf("bad request line %q: %v", scanner.Text(), err)
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// TestE2E_CallSession runs a whole call: bind a gesture over HTTP, gesture
// through a live session into the plugin, then read the history back.
func TestE2E_CallSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	pluginRoot := filepath.Join(tmpDir, "plugins")
	pluginDir := installPlugin(t, pluginRoot)

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	clock := timeutil.NewMockClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	det := detector.NewMockDetector()
	ticks := newTickRecorder()
	const interval = 33 * time.Millisecond

	application := app.New(app.Config{
		Store:     s,
		PluginDir: pluginRoot,
		Camera:    capture.NewMockCamera(nil, false),
		Detector:  det,
		Clock:     clock,
		SchedulerOptions: []scheduler.Option{
			scheduler.WithFrameInterval(interval),
			scheduler.WithMetrics(ticks),
		},
		Logger: quietLogger,
	})
	defer application.Stop()

	if err := application.DiscoverPlugins(); err != nil {
		t.Fatalf("DiscoverPlugins() error = %v", err)
	}

	srv := server.New(server.Config{
		Store:   s,
		Overlay: application.Bridge(),
		Plugins: application.PluginManager(),
		Logger:  quietLogger,
	})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	t.Run("BindEndCall", func(t *testing.T) {
		body := `{"gesture": "end_call", "plugin_name": "call-control", "action_name": "leave-meeting", "config": {"app": "zoom.us"}}`
		resp, err := client.Post(ts.URL+"/api/bindings", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("create binding error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
	})

	var sessionID string

	t.Run("GestureThroughCall", func(t *testing.T) {
		det.SetSequence(
			detector.Result{detector.IndexUpLandmarks()},
			detector.Result{detector.ThumbsDownLandmarks()},
			detector.Result{},
			detector.CrossedWristsLandmarks(),
		)

		if err := application.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		sessionID = application.Session().SessionID()
		waitFor(t, "running", func() bool { return application.Scheduler().Phase() == scheduler.PhaseRunning })

		for i := 0; i < 4; i++ {
			ticks.step(t, clock, interval)
		}

		waitFor(t, "hang-up", func() bool { return application.Session() == nil })

		reqs := readRequests(t, pluginDir)
		wantActions := []string{"mute", "camera-off", "leave-meeting"}
		if len(reqs) != len(wantActions) {
			t.Fatalf("plugin requests = %+v, want actions %v", reqs, wantActions)
		}
		for i, want := range wantActions {
			if reqs[i].Action != want {
				t.Errorf("request %d action = %s, want %s", i, reqs[i].Action, want)
			}
			if reqs[i].Session != sessionID {
				t.Errorf("request %d session = %s, want %s", i, reqs[i].Session, sessionID)
			}
		}
		if !bytes.Contains(reqs[2].Config, []byte("zoom.us")) {
			t.Errorf("bound config not passed to plugin: %s", reqs[2].Config)
		}
	})

	t.Run("History", func(t *testing.T) {
		if sessionID == "" {
			t.Skip("no session recorded")
		}

		resp, err := client.Get(ts.URL + "/api/sessions/" + sessionID + "/events")
		if err != nil {
			t.Fatalf("get events error = %v", err)
		}
		defer resp.Body.Close()

		var history struct {
			Events []struct {
				Gesture string `json:"gesture"`
				Action  string `json:"action"`
				Outcome string `json:"outcome"`
			} `json:"events"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
			t.Fatalf("decode error = %v", err)
		}

		wantGestures := []string{"mute", "camera_off", "end_call"}
		if len(history.Events) != len(wantGestures) {
			t.Fatalf("events = %+v, want gestures %v", history.Events, wantGestures)
		}
		for i, want := range wantGestures {
			e := history.Events[i]
			if e.Gesture != want || e.Outcome != string(store.OutcomeApplied) {
				t.Errorf("event %d = %+v, want applied %s", i, e, want)
			}
		}

		resp, err = client.Get(ts.URL + "/api/sessions/" + sessionID)
		if err != nil {
			t.Fatalf("get session error = %v", err)
		}
		defer resp.Body.Close()

		var session struct {
			Active bool `json:"active"`
		}
		json.NewDecoder(resp.Body).Decode(&session)
		if session.Active {
			t.Error("session should be closed after hang-up")
		}
	})

	t.Run("OverlayClearedAfterHangup", func(t *testing.T) {
		application.Bridge().Poll()

		resp, err := client.Get(ts.URL + "/api/overlay")
		if err != nil {
			t.Fatalf("get overlay error = %v", err)
		}
		defer resp.Body.Close()

		var st scheduler.State
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if st.Running || !st.Cleared() {
			t.Errorf("overlay state after hang-up = %+v", st)
		}
	})
}
