package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Binding routes a gesture to a plugin action, overriding the default
// actuator plugin for that gesture.
type Binding struct {
	ID         string          `json:"id"`
	Gesture    string          `json:"gesture"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config,omitempty"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  time.Time       `json:"created_at"`
}

// BindingRepository provides CRUD operations for bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

const bindingColumns = `id, gesture, plugin_name, action_name, config, enabled, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBinding(row rowScanner) (*Binding, error) {
	b := &Binding{}
	var config string
	var enabled int

	if err := row.Scan(&b.ID, &b.Gesture, &b.PluginName, &b.ActionName, &config, &enabled, &b.CreatedAt); err != nil {
		return nil, err
	}

	b.Config = json.RawMessage(config)
	b.Enabled = enabled != 0
	return b, nil
}

// Create inserts a new binding. Only one binding may exist per gesture.
func (r *BindingRepository) Create(b *Binding) error {
	b.CreatedAt = time.Now()

	config := b.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	_, err := r.db.Exec(
		`INSERT INTO bindings (`+bindingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Gesture, b.PluginName, b.ActionName, string(config), b.Enabled, b.CreatedAt,
	)
	return err
}

// GetByID retrieves a binding by its ID.
func (r *BindingRepository) GetByID(id string) (*Binding, error) {
	b, err := scanBinding(r.db.QueryRow(
		`SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// GetByGesture retrieves the binding for a gesture.
// Returns nil, nil if nothing is bound to it.
func (r *BindingRepository) GetByGesture(gesture string) (*Binding, error) {
	b, err := scanBinding(r.db.QueryRow(
		`SELECT `+bindingColumns+` FROM bindings WHERE gesture = ?`, gesture,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// List retrieves all bindings.
func (r *BindingRepository) List() ([]*Binding, error) {
	rows, err := r.db.Query(`SELECT ` + bindingColumns + ` FROM bindings ORDER BY gesture`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bindings, nil
}

// Update updates an existing binding.
func (r *BindingRepository) Update(b *Binding) error {
	config := b.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	result, err := r.db.Exec(
		`UPDATE bindings SET gesture = ?, plugin_name = ?, action_name = ?, config = ?, enabled = ?
		 WHERE id = ?`,
		b.Gesture, b.PluginName, b.ActionName, string(config), b.Enabled, b.ID,
	)
	if err != nil {
		return err
	}

	return requireAffected(result)
}

// Delete removes a binding by its ID.
func (r *BindingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
