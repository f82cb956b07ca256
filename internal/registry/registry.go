package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/pyappify/pyappify/internal/logging"
	"github.com/pyappify/pyappify/internal/paths"
)

// Registry is the in-memory index of app records with JSON persistence.
// All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	apps   map[string]*App
	locks  sync.Map // app name -> *sync.Mutex
	layout paths.Layout
	log    *logging.Logger
}

// New creates an empty registry over the given layout.
func New(layout paths.Layout, log *logging.Logger) *Registry {
	return &Registry{
		apps:   make(map[string]*App),
		layout: layout,
		log:    log,
	}
}

// Lock returns the serialization mutex for one app. Lifecycle flows hold it
// for the whole operation so concurrent setups, updates and deletes of the
// same app never interleave.
func (r *Registry) Lock(name string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(name, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Get returns a copy of the named record.
func (r *Registry) Get(name string) (*App, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[name]
	if !ok {
		return nil, false
	}
	return app.Clone(), true
}

// Upsert stores the record in memory and persists it to the app's app.json.
func (r *Registry) Upsert(app *App) error {
	r.mu.Lock()
	r.apps[app.Name] = app.Clone()
	r.mu.Unlock()
	return r.persist(app)
}

// SetRunning updates only the running flag, persisting when it changed.
// It reports whether the flag actually flipped. Used by the liveness poller.
func (r *Registry) SetRunning(name string, running bool) (bool, error) {
	r.mu.Lock()
	app, ok := r.apps[name]
	if !ok || app.Running == running {
		r.mu.Unlock()
		return false, nil
	}
	app.Running = running
	cp := app.Clone()
	r.mu.Unlock()
	return true, r.persist(cp)
}

// Remove drops the record from memory. Disk state is the caller's problem.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	delete(r.apps, name)
	r.mu.Unlock()
}

// Names returns all registered app names, unordered.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.apps))
	for name := range r.apps {
		names = append(names, name)
	}
	return names
}

// List returns copies of all records, running apps first, then most recently
// started first.
func (r *Registry) List() []*App {
	r.mu.RLock()
	out := make([]*App, 0, len(r.apps))
	for _, app := range r.apps {
		out = append(out, app.Clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Running != out[j].Running {
			return out[i].Running
		}
		return out[i].LastStart.After(out[j].LastStart)
	})
	return out
}

// LoadRecord reads one app.json from disk into memory. A record whose name
// disagrees with its directory is corrected and logged; a record that fails
// to decode is an error, not a silent reset.
func (r *Registry) LoadRecord(dirName string) (*App, error) {
	path := r.layout.RecordPath(dirName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record for %s: %w", dirName, err)
	}

	var app App
	if err := json.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", path, err)
	}
	if app.Name != dirName {
		r.log.Warn("record name disagrees with directory, correcting",
			zap.String("record", app.Name),
			zap.String("dir", dirName))
		app.Name = dirName
	}

	r.mu.Lock()
	r.apps[app.Name] = app.Clone()
	r.mu.Unlock()
	return &app, nil
}

func (r *Registry) persist(app *App) error {
	path := r.layout.RecordPath(app.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create app dir for %s: %w", app.Name, err)
	}
	data, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record for %s: %w", app.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write record for %s: %w", app.Name, err)
	}
	return nil
}
