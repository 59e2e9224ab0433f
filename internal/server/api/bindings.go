package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/handsignal/internal/gesture"
	"github.com/ayusman/handsignal/internal/plugin"
	"github.com/ayusman/handsignal/internal/store"
)

// PluginLookup resolves plugin names. *plugin.Manager implements it.
type PluginLookup interface {
	Get(name string) (*plugin.Plugin, error)
}

// BindingHandler handles HTTP requests for gesture binding resources.
type BindingHandler struct {
	store   *store.Store
	plugins PluginLookup
}

// NewBindingHandler creates a new BindingHandler. With a nil plugins lookup,
// plugin names are not checked.
func NewBindingHandler(s *store.Store, plugins PluginLookup) *BindingHandler {
	return &BindingHandler{store: s, plugins: plugins}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/bindings or /api/bindings/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/bindings")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type createBindingRequest struct {
	Gesture    string          `json:"gesture"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
}

type updateBindingRequest struct {
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

type bindingResponse struct {
	ID         string          `json:"id"`
	Gesture    string          `json:"gesture"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

func toBindingResponse(b *store.Binding) bindingResponse {
	config := b.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	return bindingResponse{
		ID:         b.ID,
		Gesture:    b.Gesture,
		PluginName: b.PluginName,
		ActionName: b.ActionName,
		Config:     config,
		Enabled:    b.Enabled,
		CreatedAt:  formatTime(b.CreatedAt),
	}
}

// checkPlugin writes a 400 and returns false if name is not a known plugin.
func (h *BindingHandler) checkPlugin(w http.ResponseWriter, name string) bool {
	if h.plugins == nil {
		return true
	}
	if _, err := h.plugins.Get(name); err != nil {
		if errors.Is(err, plugin.ErrPluginNotFound) {
			writeError(w, http.StatusBadRequest, "Plugin not found")
			return false
		}
		writeError(w, http.StatusInternalServerError, "Failed to verify plugin")
		return false
	}
	return true
}

// list handles GET /api/bindings and returns all bindings.
func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}

	response := listBindingsResponse{
		Bindings: make([]bindingResponse, 0, len(bindings)),
	}
	for _, b := range bindings {
		response.Bindings = append(response.Bindings, toBindingResponse(b))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/bindings/{id} and returns a single binding.
func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	binding, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	writeJSON(w, http.StatusOK, toBindingResponse(binding))
}

// create handles POST /api/bindings and creates a new binding.
func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	g, err := gesture.Parse(req.Gesture)
	if err != nil || g == gesture.None {
		writeError(w, http.StatusBadRequest, "gesture must be one of mute, unmute, camera_on, camera_off, end_call")
		return
	}
	if req.PluginName == "" {
		writeError(w, http.StatusBadRequest, "plugin_name is required")
		return
	}
	if req.ActionName == "" {
		writeError(w, http.StatusBadRequest, "action_name is required")
		return
	}
	if !h.checkPlugin(w, req.PluginName) {
		return
	}

	// Check for duplicate binding
	existing, err := h.store.Bindings().GetByGesture(string(g))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check existing binding")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Gesture is already bound")
		return
	}

	binding := &store.Binding{
		ID:         uuid.New().String(),
		Gesture:    string(g),
		PluginName: req.PluginName,
		ActionName: req.ActionName,
		Config:     req.Config,
		Enabled:    true,
	}

	if err := h.store.Bindings().Create(binding); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create binding")
		return
	}

	writeJSON(w, http.StatusCreated, toBindingResponse(binding))
}

// update handles PUT /api/bindings/{id} and updates an existing binding.
func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	binding, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	var req updateBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.PluginName != "" {
		if !h.checkPlugin(w, req.PluginName) {
			return
		}
		binding.PluginName = req.PluginName
	}
	if req.ActionName != "" {
		binding.ActionName = req.ActionName
	}
	if req.Config != nil {
		binding.Config = req.Config
	}
	if req.Enabled != nil {
		binding.Enabled = *req.Enabled
	}

	if err := h.store.Bindings().Update(binding); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update binding")
		return
	}

	writeJSON(w, http.StatusOK, toBindingResponse(binding))
}

// delete handles DELETE /api/bindings/{id} and removes a binding.
func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Bindings().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
