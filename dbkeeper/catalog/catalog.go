// Package catalog keeps named backend connections guarded by a password.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
)

const FileName = "services.json"

const (
	msgServiceExists   = "Service already exists."
	msgServiceNotFound = "Service not found."
	msgUnauthorized    = "Invalid service password."
)

// Entry is one registered connection.
type Entry struct {
	Name         string          `json:"name"`
	Owner        string          `json:"owner"`
	Backend      storage.Backend `json:"backend"`
	URI          string          `json:"uri"`
	PasswordHash string          `json:"password_hash"`
	Created      time.Time       `json:"created"`
}

// Lite is the listing view of an entry.
type Lite struct {
	Name    string          `json:"name"`
	Backend storage.Backend `json:"backend"`
}

func (e Entry) Lite() Lite {
	return Lite{Name: e.Name, Backend: e.Backend}
}

// Registry is safe for concurrent use. A registry with a path rewrites its
// file after every change.
type Registry struct {
	// Cost is the bcrypt cost used for new entries.
	Cost int

	mu      sync.Mutex
	path    string
	entries map[string]Entry
	now     func() time.Time
}

// New returns an in-memory registry.
func New() *Registry {
	return &Registry{Cost: bcrypt.DefaultCost, entries: make(map[string]Entry), now: time.Now}
}

// Load returns a registry persisted at dir/services.json. A missing file
// yields an empty registry.
func Load(dir string) (*Registry, error) {
	r := New()
	r.path = filepath.Join(dir, FileName)

	b, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, dkerrors.Wrap(dkerrors.ErrConfig, "read service catalog", err)
	}

	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, dkerrors.Wrap(dkerrors.ErrConfig, fmt.Sprintf("parse service catalog %s", r.path), err)
	}
	for _, e := range entries {
		r.entries[e.Name] = e
	}
	return r, nil
}

// Path returns the backing file, or "" for an in-memory registry.
func (r *Registry) Path() string { return r.path }

func (r *Registry) Add(name, owner, password string, backend storage.Backend, uri string) (Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Entry{}, dkerrors.New(dkerrors.ErrValidation, "service name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return Entry{}, dkerrors.New(dkerrors.ErrValidation, msgServiceExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.Cost)
	if err != nil {
		return Entry{}, dkerrors.Wrap(dkerrors.ErrConfig, "hash service password", err)
	}
	e := Entry{
		Name:         name,
		Owner:        owner,
		Backend:      backend,
		URI:          uri,
		PasswordHash: string(hash),
		Created:      r.now().UTC(),
	}
	r.entries[name] = e
	if err := r.save(); err != nil {
		delete(r.entries, name)
		return Entry{}, err
	}
	return e, nil
}

// Remove deletes the named entry after checking its password.
func (r *Registry) Remove(name, password string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.authenticate(name, password)
	if err != nil {
		return Entry{}, err
	}
	delete(r.entries, name)
	if err := r.save(); err != nil {
		r.entries[name] = e
		return Entry{}, err
	}
	return e, nil
}

func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	return e, ok
}

// List returns every entry sorted by name.
func (r *Registry) List() []Lite {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Lite, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Lite())
	}
	slices.SortFunc(out, func(a, b Lite) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Authenticate returns the entry when password matches its hash.
func (r *Registry) Authenticate(name, password string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authenticate(name, password)
}

func (r *Registry) authenticate(name, password string) (Entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, dkerrors.NotFoundError(msgServiceNotFound)
	}
	err := bcrypt.CompareHashAndPassword([]byte(e.PasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return Entry{}, dkerrors.New(dkerrors.ErrAuth, msgUnauthorized)
	}
	if err != nil {
		return Entry{}, dkerrors.Wrap(dkerrors.ErrAuth, msgUnauthorized, err)
	}
	return e, nil
}

// save writes the catalog through a temporary file. Callers hold mu.
func (r *Registry) save() error {
	if r.path == "" {
		return nil
	}
	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })

	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return dkerrors.Wrap(dkerrors.ErrConfig, "encode service catalog", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return dkerrors.Wrap(dkerrors.ErrConfig, "create catalog directory", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return dkerrors.Wrap(dkerrors.ErrConfig, "write service catalog", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return dkerrors.Wrap(dkerrors.ErrConfig, "write service catalog", err)
	}
	return nil
}
