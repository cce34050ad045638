package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/newtron-network/sotboard/pkg/util"
)

// line kinds in the journal file
const (
	kindOpen  = "open"
	kindEntry = "entry"
	kindClose = "close"
)

type line struct {
	Kind  string `json:"kind"`
	Meta  *Meta  `json:"meta,omitempty"`
	Entry *Entry `json:"entry,omitempty"`
}

// FileJournal appends journals to a JSON-lines file.
type FileJournal struct {
	path     string
	file     *os.File
	encoder  *json.Encoder
	mu       sync.RWMutex
	rotation RotationConfig
	closed   map[string]bool
}

// RotationConfig configures file rotation.
type RotationConfig struct {
	MaxSize    int64 // bytes before rotation, 0 disables
	MaxBackups int
}

// NewFileJournal opens (or creates) the journal file at path.
func NewFileJournal(path string, rotation RotationConfig) (*FileJournal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is empty: %w", util.ErrInvalidConfig)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	j := &FileJournal{
		path:     path,
		file:     file,
		encoder:  json.NewEncoder(file),
		rotation: rotation,
		closed:   make(map[string]bool),
	}
	err = j.scan(func(l *line) {
		if l.Kind == kindClose && l.Meta != nil {
			j.closed[l.Meta.ID] = true
		}
	})
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return j, nil
}

func (j *FileJournal) write(l line) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.rotation.MaxSize > 0 {
		if info, err := j.file.Stat(); err == nil && info.Size() >= j.rotation.MaxSize {
			if err := j.rotate(); err != nil {
				return fmt.Errorf("rotating journal: %w", err)
			}
		}
	}
	return j.encoder.Encode(l)
}

// Open implements Journal.
func (j *FileJournal) Open(_ context.Context, app string) (string, error) {
	meta := &Meta{ID: newID(), App: app, Status: StatusActive, CreatedAt: time.Now().UTC()}
	if err := j.write(line{Kind: kindOpen, Meta: meta}); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// Record implements Journal. Entries of a closed journal are rejected.
func (j *FileJournal) Record(_ context.Context, e *Entry) error {
	if e.Journal == "" {
		return fmt.Errorf("entry without journal id: %w", util.ErrInvalidConfig)
	}
	if j.isClosed(e.Journal) {
		return fmt.Errorf("journal %s is closed: %w", e.Journal, util.ErrInvalidConfig)
	}
	return j.write(line{Kind: kindEntry, Entry: e})
}

// Finish implements Journal.
func (j *FileJournal) Finish(_ context.Context, id string) error {
	if err := j.write(line{Kind: kindClose, Meta: &Meta{ID: id, Status: StatusClosed}}); err != nil {
		return err
	}
	j.mu.Lock()
	j.closed[id] = true
	j.mu.Unlock()
	return nil
}

func (j *FileJournal) isClosed(id string) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.closed[id]
}

// scan calls fn for every well-formed line of the current file.
func (j *FileJournal) scan(fn func(l *line)) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	file, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		var l line
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			util.Warnf("journal: skipping malformed line %d: %v", n, err)
			continue
		}
		fn(&l)
	}
	return scanner.Err()
}

// Entries implements Journal.
func (j *FileJournal) Entries(_ context.Context, id string, filter Filter) ([]*Entry, error) {
	var entries []*Entry
	err := j.scan(func(l *line) {
		if l.Kind == kindEntry && l.Entry != nil && l.Entry.Journal == id && filter.match(l.Entry) {
			entries = append(entries, l.Entry)
		}
	})
	if err != nil {
		return nil, err
	}
	return filter.page(entries), nil
}

// Journals implements Journal.
func (j *FileJournal) Journals(_ context.Context) ([]*Meta, error) {
	byID := make(map[string]*Meta)
	var order []string
	err := j.scan(func(l *line) {
		if l.Meta == nil {
			return
		}
		switch l.Kind {
		case kindOpen:
			if _, ok := byID[l.Meta.ID]; !ok {
				order = append(order, l.Meta.ID)
			}
			byID[l.Meta.ID] = l.Meta
		case kindClose:
			if m, ok := byID[l.Meta.ID]; ok {
				m.Status = StatusClosed
			}
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Meta, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}

// Close closes the file.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file != nil {
		return j.file.Close()
	}
	return nil
}

func (j *FileJournal) rotate() error {
	if err := j.file.Close(); err != nil {
		return err
	}
	rotated := j.path + "." + time.Now().Format("20060102-150405.000000")
	if err := os.Rename(j.path, rotated); err != nil {
		return err
	}
	file, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	j.file = file
	j.encoder = json.NewEncoder(file)

	if j.rotation.MaxBackups > 0 {
		j.cleanupOldFiles()
	}
	return nil
}

func (j *FileJournal) cleanupOldFiles() {
	matches, err := filepath.Glob(j.path + ".*")
	if err != nil || len(matches) <= j.rotation.MaxBackups {
		return
	}
	type fileInfo struct {
		path    string
		modTime time.Time
	}
	files := make([]fileInfo, 0, len(matches))
	for _, p := range matches {
		if info, err := os.Stat(p); err == nil {
			files = append(files, fileInfo{p, info.ModTime()})
		}
	}
	sort.Slice(files, func(a, b int) bool { return files[a].modTime.Before(files[b].modTime) })
	for i := 0; i < len(files)-j.rotation.MaxBackups; i++ {
		os.Remove(files[i].path)
	}
}
