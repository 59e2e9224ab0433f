package callsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ayusman/handsignal/internal/gesture"
	"github.com/ayusman/handsignal/internal/plugin"
	"github.com/ayusman/handsignal/internal/store"
)

// Plugin action names. A plugin lists the ones it handles in its manifest.
const (
	ActionMute      = "mute"
	ActionUnmute    = "unmute"
	ActionCameraOn  = "camera-on"
	ActionCameraOff = "camera-off"
	ActionHangup    = "hangup"
)

// ErrBindingDisabled is returned when the gesture has a binding that the user
// switched off.
var ErrBindingDisabled = errors.New("gesture binding is disabled")

// Actuator applies call-control actions to the real call.
type Actuator interface {
	Mute(ctx context.Context) error
	Unmute(ctx context.Context) error
	CameraOn(ctx context.Context) error
	CameraOff(ctx context.Context) error
	Hangup(ctx context.Context) error
}

// Action returns the plugin action a gesture maps to, or "" for None.
func Action(g gesture.Gesture) string {
	switch g {
	case gesture.Mute:
		return ActionMute
	case gesture.Unmute:
		return ActionUnmute
	case gesture.CameraOn:
		return ActionCameraOn
	case gesture.CameraOff:
		return ActionCameraOff
	case gesture.EndCall:
		return ActionHangup
	}
	return ""
}

// BindingLookup finds the user's binding for a gesture. It returns nil, nil
// when the gesture is unbound.
type BindingLookup interface {
	GetByGesture(gesture string) (*store.Binding, error)
}

// PluginActuator runs discovered plugins. A gesture's binding, when present,
// picks the plugin, the action and its config. Without one the first plugin
// that supports the default action is used.
type PluginActuator struct {
	manager   *plugin.Manager
	executor  *plugin.Executor
	bindings  BindingLookup
	sessionID string
	logger    *slog.Logger
}

// NewPluginActuator creates a PluginActuator. bindings may be nil.
func NewPluginActuator(manager *plugin.Manager, executor *plugin.Executor, bindings BindingLookup, sessionID string, logger *slog.Logger) *PluginActuator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PluginActuator{
		manager:   manager,
		executor:  executor,
		bindings:  bindings,
		sessionID: sessionID,
		logger:    logger,
	}
}

func (a *PluginActuator) Mute(ctx context.Context) error      { return a.run(ctx, gesture.Mute) }
func (a *PluginActuator) Unmute(ctx context.Context) error    { return a.run(ctx, gesture.Unmute) }
func (a *PluginActuator) CameraOn(ctx context.Context) error  { return a.run(ctx, gesture.CameraOn) }
func (a *PluginActuator) CameraOff(ctx context.Context) error { return a.run(ctx, gesture.CameraOff) }
func (a *PluginActuator) Hangup(ctx context.Context) error    { return a.run(ctx, gesture.EndCall) }

func (a *PluginActuator) run(ctx context.Context, g gesture.Gesture) error {
	p, req, err := a.resolve(g)
	if err != nil {
		return err
	}

	a.logger.Debug("running plugin", "plugin", p.Manifest.Name, "action", req.Action, "gesture", g)
	return a.executor.Run(ctx, p, req)
}

func (a *PluginActuator) resolve(g gesture.Gesture) (*plugin.Plugin, *plugin.Request, error) {
	req := &plugin.Request{
		Action:     Action(g),
		Gesture:    string(g),
		Session:    a.sessionID,
		Confidence: 1,
	}

	if a.bindings != nil {
		b, err := a.bindings.GetByGesture(string(g))
		if err != nil {
			return nil, nil, fmt.Errorf("look up binding for %s: %w", g, err)
		}
		if b != nil {
			if !b.Enabled {
				return nil, nil, fmt.Errorf("%w: %s", ErrBindingDisabled, g)
			}
			p, err := a.manager.Get(b.PluginName)
			if err != nil {
				return nil, nil, err
			}
			req.Action = b.ActionName
			req.Config = b.Config
			return p, req, nil
		}
	}

	p, err := a.manager.ForAction(req.Action)
	if err != nil {
		return nil, nil, err
	}
	return p, req, nil
}

// LogActuator only logs actions. It stands in when no plugin is installed.
type LogActuator struct {
	Logger *slog.Logger
}

func (a LogActuator) Mute(context.Context) error      { return a.log(ActionMute) }
func (a LogActuator) Unmute(context.Context) error    { return a.log(ActionUnmute) }
func (a LogActuator) CameraOn(context.Context) error  { return a.log(ActionCameraOn) }
func (a LogActuator) CameraOff(context.Context) error { return a.log(ActionCameraOff) }
func (a LogActuator) Hangup(context.Context) error    { return a.log(ActionHangup) }

func (a LogActuator) log(action string) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("call action", "action", action)
	return nil
}
