// Package plugin discovers and runs the external executables that act on a
// call session (mute the microphone, toggle the camera, hang up).
//
// A plugin lives in its own directory with a plugin.json manifest. Each run
// receives one JSON Request on stdin and must print one JSON Response.
package plugin

import (
	"encoding/json"
	"slices"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action     string          `json:"action"`
	Gesture    string          `json:"gesture"`
	Session    string          `json:"session"`
	Confidence float64         `json:"confidence,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the manifest lists action.
func (p *Plugin) Supports(action string) bool {
	return slices.Contains(p.Manifest.Actions, action)
}
