package defaults

import (
	"context"
	"fmt"
	"sync"

	"github.com/newtron-network/sotboard/pkg/prefix"
	"github.com/newtron-network/sotboard/pkg/util"
)

// TagsKey is the one key whose values are concatenated instead of replaced.
const TagsKey = "tags"

// DeviceDefaults is the merged defaults record of one device.
type DeviceDefaults map[string]interface{}

// String returns the value of key if it is a string.
func (d DeviceDefaults) String(key string) string {
	return util.StringValue(d[key])
}

// Bool returns the value of key if it is a bool.
func (d DeviceDefaults) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Fold combines the defaults of each prefix on path in order. Later
// prefixes replace earlier values per top-level key; nested mappings are
// not merged.
func Fold(table prefix.Table, path prefix.Path) map[string]interface{} {
	out := make(map[string]interface{})
	for _, p := range path {
		for k, v := range table[p] {
			out[k] = v
		}
	}
	return util.CloneMap(out)
}

// MergeRow merges an inventory row into folded prefix defaults:
//  1. row keys holding nil are dropped so they cannot erase a default;
//  2. the row is deep-merged over the defaults (row wins, mappings merge);
//  3. if both sides carry tags, the result is the defaults' tags followed
//     by the row's tags, each normalized to a list. Duplicates are kept.
func MergeRow(folded map[string]interface{}, row map[string]interface{}) DeviceDefaults {
	savedTags, hasSaved := folded[TagsKey]

	cleaned := make(map[string]interface{}, len(row))
	for k, v := range row {
		if v == nil {
			continue
		}
		cleaned[k] = v
	}

	merged := util.DeepMerge(folded, cleaned)

	if rowTags, hasRow := cleaned[TagsKey]; hasSaved && savedTags != nil && hasRow {
		tags := util.ToStringList(savedTags)
		merged[TagsKey] = append(tags, util.ToStringList(rowTags)...)
	}
	return DeviceDefaults(merged)
}

// Merge resolves the prefix path of ip in table, folds it and merges row.
func Merge(table prefix.Table, ip string, row map[string]interface{}) DeviceDefaults {
	return MergeRow(Fold(table, prefix.Resolve(table, ip)), row)
}

// Merger loads the defaults table once and merges rows against it. The
// index is built on first use and shared by every device of the run.
type Merger struct {
	source Source

	mu    sync.Mutex
	table prefix.Table
	index *prefix.Index
}

// NewMerger creates a merger reading from source.
func NewMerger(source Source) *Merger {
	return &Merger{source: source}
}

// NewStaticMerger creates a merger over an already loaded table.
func NewStaticMerger(table prefix.Table) *Merger {
	return &Merger{table: table, index: prefix.NewIndex(table)}
}

func (m *Merger) load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index != nil {
		return nil
	}
	if m.source == nil {
		return fmt.Errorf("no defaults source: %w", util.ErrInvalidConfig)
	}
	table, err := m.source.Load(ctx)
	if err != nil {
		return err
	}
	m.table = table
	m.index = prefix.NewIndex(table)
	return nil
}

// Path returns the prefix path of ip, loading the table if needed.
func (m *Merger) Path(ctx context.Context, ip string) (prefix.Path, error) {
	if err := m.load(ctx); err != nil {
		return nil, err
	}
	return m.index.Path(ip), nil
}

// Merge returns the defaults record for a device at ip with inventory row.
// A missing or unreadable defaults document is returned as an error and is
// fatal for the device.
func (m *Merger) Merge(ctx context.Context, ip string, row map[string]interface{}) (DeviceDefaults, error) {
	path, err := m.Path(ctx, ip)
	if err != nil {
		return nil, err
	}
	util.WithField("ip", ip).Debugf("Prefix path %v", path)
	return MergeRow(Fold(m.table, path), row), nil
}
