package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// ErrScriptNotFound is returned when mediapipe_service.py cannot be located.
var ErrScriptNotFound = errors.New("mediapipe_service.py not found")

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// Wire protocol on the subprocess pipes:
//
//	stdout, once:   {"ready":true} or {"error":"..."}
//	stdin, per frame: uint32 BE length | int64 BE timestamp (ms) | JPEG bytes
//	stdout, per frame: {"hands":[{"points":[...],"handedness":"Right","score":0.9}]}
type MediaPipeDetector struct {
	config Config
	script string
	python string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	ready  atomic.Bool
}

// NewMediaPipeDetector creates a new MediaPipe detector. The Python process
// is not started until Init.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := config.ScriptPath
	if script == "" {
		script = findMediaPipeScript()
	}
	if script == "" {
		return nil, ErrScriptNotFound
	}

	python := config.PythonPath
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{
		config: config,
		script: script,
		python: python,
	}, nil
}

// Init starts the subprocess and waits for its ready handshake. Model
// download on first run can take a long time; ctx bounds the wait.
func (d *MediaPipeDetector) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ready.Load() {
		return nil
	}

	cmd := exec.Command(d.python, d.script,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	reader := bufio.NewReader(stdout)
	handshake := make(chan error, 1)
	go func() {
		handshake <- readHandshake(reader)
	}()

	select {
	case err = <-handshake:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		stdin.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return fmt.Errorf("mediapipe handshake: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = reader
	d.ready.Store(true)

	return nil
}

// Ready reports whether the subprocess completed its handshake.
func (d *MediaPipeDetector) Ready() bool {
	return d.ready.Load()
}

// Detect sends a frame to the subprocess and returns the detected hands.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat, ts time.Time) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready.Load() {
		return nil, ErrNotReady
	}
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	// Encode frame as JPEG
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	header := make([]byte, 12)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(data)))
	binary.BigEndian.PutUint64(header[4:12], uint64(ts.UnixMilli()))

	if _, err := d.stdin.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	// Read JSON response
	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return parseHands(line)
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.ready.Load() {
		return nil
	}
	d.ready.Store(false)

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func readHandshake(r *bufio.Reader) error {
	line, err := r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read handshake: %w", err)
	}

	var msg struct {
		Ready bool   `json:"ready"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return fmt.Errorf("parse handshake: %w", err)
	}
	if msg.Error != "" {
		return errors.New(msg.Error)
	}
	if !msg.Ready {
		return fmt.Errorf("unexpected handshake %q", line)
	}
	return nil
}

func parseHands(line string) (Result, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("mediapipe: %s", response.Error)
	}

	result := make(Result, len(response.Hands))
	for i, h := range response.Hands {
		result[i] = h.toHandLandmarks()
	}

	return result, nil
}

func findMediaPipeScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(execDir, "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".handsignal/scripts/mediapipe_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".handsignal/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		lm.Points[i] = h.Points[i]
	}

	return lm
}
