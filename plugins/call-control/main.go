// Command call-control is the bundled handsignal plugin. It turns call
// actions into the meeting app's keyboard shortcuts, via AppleScript on
// macOS and xdotool elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/ayusman/handsignal/internal/plugin"
)

// Shortcut is a key plus modifiers, e.g. {"key":"a","modifiers":["cmd","shift"]}.
type Shortcut struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
	App       string   `json:"app,omitempty"`
}

// defaultShortcuts are Zoom's desktop bindings. Mute and unmute share a
// toggle, as do the camera actions.
var defaultShortcuts = map[string]Shortcut{
	"mute":       {Key: "a", Modifiers: []string{"command", "shift"}},
	"unmute":     {Key: "a", Modifiers: []string{"command", "shift"}},
	"camera-off": {Key: "v", Modifiers: []string{"command", "shift"}},
	"camera-on":  {Key: "v", Modifiers: []string{"command", "shift"}},
	"hangup":     {Key: "w", Modifiers: []string{"command"}},
}

// modifierMap maps user-friendly modifier names to AppleScript equivalents.
var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

// xdotoolMap maps modifier names to xdotool key names.
var xdotoolMap = map[string]string{
	"command": "super",
	"cmd":     "super",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

func main() {
	resp := handle(os.Stdin, runtime.GOOS, runCommand)
	json.NewEncoder(os.Stdout).Encode(resp)
}

// handle decodes one request and runs the matching shortcut.
func handle(r io.Reader, goos string, run func(name string, args ...string) error) plugin.Response {
	var req plugin.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return plugin.Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	sc, err := resolve(req)
	if err != nil {
		return plugin.Response{Error: err.Error()}
	}

	name, args := command(goos, sc)
	if err := run(name, args...); err != nil {
		return plugin.Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)}
	}
	return plugin.Response{Success: true}
}

// resolve picks the shortcut for req. A binding config overrides the
// default for the action.
func resolve(req plugin.Request) (Shortcut, error) {
	sc, ok := defaultShortcuts[req.Action]
	if len(req.Config) > 0 && string(req.Config) != "{}" {
		var override Shortcut
		if err := json.Unmarshal(req.Config, &override); err != nil {
			return Shortcut{}, fmt.Errorf("failed to parse config: %w", err)
		}
		if override.Key != "" {
			return override, nil
		}
		if override.App != "" && ok {
			sc.App = override.App
		}
	}
	if !ok {
		return Shortcut{}, fmt.Errorf("unknown action: %s", req.Action)
	}
	return sc, nil
}

// command builds the platform command that sends sc.
func command(goos string, sc Shortcut) (string, []string) {
	if goos == "darwin" {
		return "osascript", []string{"-e", buildKeystrokeScript(sc)}
	}

	keys := make([]string, 0, len(sc.Modifiers)+1)
	for _, mod := range sc.Modifiers {
		if name, ok := xdotoolMap[strings.ToLower(mod)]; ok {
			keys = append(keys, name)
		}
	}
	keys = append(keys, sc.Key)
	return "xdotool", []string{"key", strings.Join(keys, "+")}
}

// buildKeystrokeScript generates an AppleScript for the shortcut.
func buildKeystrokeScript(sc Shortcut) string {
	var appleModifiers []string
	for _, mod := range sc.Modifiers {
		if appleMod, ok := modifierMap[strings.ToLower(mod)]; ok {
			appleModifiers = append(appleModifiers, appleMod)
		}
	}

	keystroke := fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, sc.Key)
	if len(appleModifiers) > 0 {
		keystroke += fmt.Sprintf(" using {%s}", strings.Join(appleModifiers, ", "))
	}
	if sc.App == "" {
		return keystroke
	}
	return fmt.Sprintf("tell application \"%s\" to activate\n%s", sc.App, keystroke)
}

func runCommand(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
