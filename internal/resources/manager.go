package resources

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

const MemoryScheme = "memory://"

var (
	ErrNotFound     = errors.New("resource not found")
	ErrAccessDenied = errors.New("resource access denied")
	ErrExists       = errors.New("resource already exists")
)

type AccessMode string

const (
	ReadOnly  AccessMode = "read_only"
	WriteOnly AccessMode = "write_only"
	ReadWrite AccessMode = "read_write"
)

func (m AccessMode) CanRead() bool  { return m == ReadOnly || m == ReadWrite }
func (m AccessMode) CanWrite() bool { return m == WriteOnly || m == ReadWrite }

type Info struct {
	URI       string     `json:"uri"`
	Mode      AccessMode `json:"mode"`
	Size      int        `json:"size"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type buffer struct {
	mu      sync.RWMutex
	mode    AccessMode
	data    []byte
	updated time.Time
}

// Manager gives tools locked access to named in-memory buffers. The map is
// guarded by mu and each buffer by its own lock, so readers of one buffer
// never wait on writers of another.
type Manager struct {
	mu      sync.RWMutex
	buffers map[string]*buffer
}

func NewManager() *Manager {
	return &Manager{buffers: map[string]*buffer{}}
}

func MemoryURI(name string) string {
	return MemoryScheme + name
}

func (m *Manager) Create(name string, mode AccessMode, initial []byte) (string, error) {
	if name == "" {
		return "", errors.New("resource name is required")
	}
	switch mode {
	case ReadOnly, WriteOnly, ReadWrite:
	default:
		return "", errors.Errorf("unknown access mode %q", mode)
	}
	uri := MemoryURI(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buffers[uri]; ok {
		return "", errors.Wrap(ErrExists, uri)
	}
	m.buffers[uri] = &buffer{
		mode:    mode,
		data:    append([]byte(nil), initial...),
		updated: time.Now().UTC(),
	}
	return uri, nil
}

func (m *Manager) get(uri string) (*buffer, error) {
	if !strings.HasPrefix(uri, MemoryScheme) {
		return nil, errors.Wrapf(ErrNotFound, "unsupported uri %q", uri)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buffers[uri]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, uri)
	}
	return b, nil
}

// Read returns a copy of the buffer contents.
func (m *Manager) Read(uri string) ([]byte, error) {
	b, err := m.get(uri)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.mode.CanRead() {
		return nil, errors.Wrap(ErrAccessDenied, uri)
	}
	return append([]byte(nil), b.data...), nil
}

func (m *Manager) Write(uri string, data []byte) error {
	return m.update(uri, func(b *buffer) {
		b.data = append(b.data[:0], data...)
	})
}

func (m *Manager) Append(uri string, data []byte) error {
	return m.update(uri, func(b *buffer) {
		b.data = append(b.data, data...)
	})
}

func (m *Manager) update(uri string, fn func(*buffer)) error {
	b, err := m.get(uri)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mode.CanWrite() {
		return errors.Wrap(ErrAccessDenied, uri)
	}
	fn(b)
	b.updated = time.Now().UTC()
	return nil
}

func (m *Manager) Delete(uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buffers[uri]; !ok {
		return errors.Wrap(ErrNotFound, uri)
	}
	delete(m.buffers, uri)
	return nil
}

func (m *Manager) Stat(uri string) (Info, error) {
	b, err := m.get(uri)
	if err != nil {
		return Info{}, err
	}
	return b.info(uri), nil
}

// List returns every resource sorted by uri.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.buffers))
	for uri, b := range m.buffers {
		out = append(out, b.info(uri))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

func (b *buffer) info(uri string) Info {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Info{URI: uri, Mode: b.mode, Size: len(b.data), UpdatedAt: b.updated}
}
