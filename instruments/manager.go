package instruments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Config holds configuration for creating a new instruments Manager.
type Config struct {
	Logger *slog.Logger // required

	// Path is a local instrument dump CSV to load at startup. Optional.
	Path string

	// Watch reloads Path whenever the file changes on disk. Requires Path.
	Watch bool

	// TestData bypasses file loading entirely; used by tests.
	TestData map[uint32]*Instrument
}

// Manager holds the instrument universe and answers lookups by token or
// trading symbol.
type Manager struct {
	mu       sync.RWMutex
	byToken  map[uint32]*Instrument
	bySymbol map[string]*Instrument

	logger  *slog.Logger
	path    string
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

// New creates a new Manager and, if configured, loads and watches the
// local instrument dump.
func New(cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Watch && cfg.Path == "" {
		return nil, errors.New("watch requires a path")
	}

	m := &Manager{
		byToken:  make(map[uint32]*Instrument),
		bySymbol: make(map[string]*Instrument),
		logger:   cfg.Logger,
		path:     cfg.Path,
	}

	if cfg.TestData != nil {
		for token, inst := range cfg.TestData {
			m.byToken[token] = inst
			m.bySymbol[inst.ID()] = inst
		}
		return m, nil
	}

	if cfg.Path != "" {
		if err := m.LoadFile(cfg.Path); err != nil {
			return nil, err
		}
	}
	if cfg.Watch {
		if err := m.startWatcher(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// LoadFile replaces the instrument universe with the contents of a CSV
// dump file.
func (m *Manager) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open instruments dump: %w", err)
	}
	defer f.Close()

	insts, err := ParseCSV(f)
	if err != nil {
		return err
	}
	m.replace(insts)
	m.logger.Info("Instruments loaded", "path", path, "count", len(insts))
	return nil
}

func (m *Manager) replace(insts []*Instrument) {
	byToken := make(map[uint32]*Instrument, len(insts))
	bySymbol := make(map[string]*Instrument, len(insts))
	for _, inst := range insts {
		byToken[inst.InstrumentToken] = inst
		bySymbol[inst.ID()] = inst
	}

	m.mu.Lock()
	m.byToken = byToken
	m.bySymbol = bySymbol
	m.mu.Unlock()
}

// Lookup returns the instrument for the given token.
func (m *Manager) Lookup(token uint32) (*Instrument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.byToken[token]
	return inst, ok
}

// LookupSymbol returns the instrument for "EXCHANGE:TRADINGSYMBOL".
func (m *Manager) LookupSymbol(id string) (*Instrument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.bySymbol[id]
	return inst, ok
}

// Count returns the number of loaded instruments.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byToken)
}

// startWatcher reloads the dump whenever it is rewritten on disk. The
// watch is on the parent directory because editors and downloaders
// typically replace the file rather than write in place.
func (m *Manager) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", m.path, err)
	}
	m.watcher = watcher

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	go func() {
		target := filepath.Clean(m.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := m.LoadFile(m.path); err != nil {
					m.logger.Error("Failed to reload instruments", "path", m.path, "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Error("Instruments watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Shutdown stops the file watcher, if any.
func (m *Manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.watcher != nil {
		_ = m.watcher.Close()
	}
}
