package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultTimeout bounds a single plugin run.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when a plugin does not finish within the timeout.
var ErrTimeout = errors.New("plugin execution timed out")

// Executor handles the execution of plugins with timeout support.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates a new Executor. A non-positive timeout uses
// DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Execute runs a plugin with the given request and returns the response.
// The request is written to the plugin's stdin as JSON and stdout is parsed
// as a Response. The run is bounded by ctx and the executor timeout.
func (e *Executor) Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, plugin.Executable)
	cmd.Dir = plugin.Path

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %v", ErrTimeout, e.timeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err != nil {
		if stderrStr := stderr.String(); stderrStr != "" {
			return nil, fmt.Errorf("plugin execution failed: %w, stderr: %s", err, stderrStr)
		}
		return nil, fmt.Errorf("plugin execution failed: %w", err)
	}

	var response Response
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse plugin response: %w, stdout: %s", err, stdout.String())
	}

	return &response, nil
}

// Run executes the plugin and turns an unsuccessful response into an error.
func (e *Executor) Run(ctx context.Context, plugin *Plugin, req *Request) error {
	resp, err := e.Execute(ctx, plugin, req)
	if err != nil {
		return err
	}
	if !resp.Success {
		if resp.Error == "" {
			return fmt.Errorf("plugin %s: %s failed", plugin.Manifest.Name, req.Action)
		}
		return fmt.Errorf("plugin %s: %s", plugin.Manifest.Name, resp.Error)
	}
	return nil
}
