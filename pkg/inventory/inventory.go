// Package inventory reads the list of devices to onboard from CSV, YAML or
// XLSX files. Every reader applies the same column and value mapping, so
// rows from any format look alike to the onboarding session.
package inventory

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/sotboard/pkg/util"
)

// Row is one inventory entry keyed by (mapped) column name.
type Row = map[string]interface{}

// NoneKey in a value mapping replaces empty cells.
const NoneKey = "None"

// Mapping renames columns and rewrites values. Values are looked up by the
// renamed column.
//
//	mappings:
//	  columns:
//	    Hostname: host
//	  values:
//	    platform:
//	      Catalyst: ios
//	      None: ios
type Mapping struct {
	Columns map[string]string                 `yaml:"columns"`
	Values  map[string]map[string]interface{} `yaml:"values"`
}

// ParseMapping decodes a mapping document with a top-level mappings key.
func ParseMapping(data []byte) (*Mapping, error) {
	var doc struct {
		Mappings *Mapping `yaml:"mappings"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if doc.Mappings == nil {
		return &Mapping{}, nil
	}
	return doc.Mappings, nil
}

// LoadMapping reads a mapping document from path.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	return ParseMapping(data)
}

// Apply maps one cell. A nil mapping keeps the key and value; "true" and
// "false" strings always become booleans.
func (m *Mapping) Apply(key string, value interface{}) (string, interface{}) {
	if m != nil {
		if renamed, ok := m.Columns[key]; ok && renamed != "" {
			key = renamed
		}
		if values, ok := m.Values[key]; ok {
			lookup := NoneKey
			if value != nil {
				lookup = fmt.Sprint(value)
			}
			if mapped, ok := values[lookup]; ok {
				value = mapped
			}
		}
	}
	return key, coerceBool(value)
}

func (m *Mapping) row(raw map[string]interface{}) Row {
	out := make(Row, len(raw))
	for k, v := range raw {
		key, value := m.Apply(k, v)
		out[key] = value
	}
	return out
}

func coerceBool(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return v
}

// CSVOptions tune the CSV reader. Zero values mean comma delimiter and
// double-quote quoting.
type CSVOptions struct {
	Delimiter string `yaml:"delimiter"`
	QuoteChar string `yaml:"quotechar"`
	Comment   string `yaml:"comment"`
}

// Options apply to every reader.
type Options struct {
	Mapping *Mapping
	CSV     CSVOptions
}

// ReadFile reads an inventory, choosing the reader by file extension.
func ReadFile(path string, opts Options) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("inventory %s: %w", path, util.ErrNotFound)
		}
		return nil, fmt.Errorf("open inventory: %w", err)
	}
	defer f.Close()

	util.WithField("inventory", path).Debug("reading inventory")
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f, opts)
	case ".yaml", ".yml":
		return ReadYAML(f, opts)
	case ".xlsx":
		return ReadXLSX(f, opts)
	}
	return nil, fmt.Errorf("unknown inventory format %s: %w", filepath.Ext(path), util.ErrInvalidConfig)
}

func singleRune(name, s string, def rune) (rune, error) {
	if s == "" {
		return def, nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, fmt.Errorf("csv %s must be one character, got %q: %w", name, s, util.ErrInvalidConfig)
	}
	return r[0], nil
}

// ReadCSV reads a CSV inventory whose first record is the header. Fields
// missing from short records are nil.
func ReadCSV(r io.Reader, opts Options) ([]Row, error) {
	delim, err := singleRune("delimiter", opts.CSV.Delimiter, ',')
	if err != nil {
		return nil, err
	}
	quote, err := singleRune("quotechar", opts.CSV.QuoteChar, '"')
	if err != nil {
		return nil, err
	}
	comment, err := singleRune("comment", opts.CSV.Comment, 0)
	if err != nil {
		return nil, err
	}

	if quote != '"' {
		// encoding/csv only knows double quotes
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		r = bytes.NewReader(bytes.ReplaceAll(data, []byte(string(quote)), []byte(`"`)))
	}

	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.Comment = comment
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		raw := make(map[string]interface{}, len(header))
		for i, col := range header {
			if i < len(record) {
				raw[col] = record[i]
			} else {
				raw[col] = nil
			}
		}
		rows = append(rows, opts.Mapping.row(raw))
	}
	return rows, nil
}

// ReadYAML reads the list under the top-level inventory key.
func ReadYAML(r io.Reader, opts Options) ([]Row, error) {
	var doc struct {
		Inventory []map[string]interface{} `yaml:"inventory"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse yaml inventory: %w", err)
	}
	rows := make([]Row, 0, len(doc.Inventory))
	for _, raw := range doc.Inventory {
		rows = append(rows, opts.Mapping.row(raw))
	}
	return rows, nil
}

// ReadXLSX reads the active sheet of a workbook; the first row is the
// header. Empty cells are nil.
func ReadXLSX(r io.Reader, opts Options) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	table, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(table) == 0 {
		return nil, nil
	}

	header := table[0]
	rows := make([]Row, 0, len(table)-1)
	for _, cells := range table[1:] {
		raw := make(map[string]interface{}, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(cells) && cells[i] != "" {
				raw[col] = cells[i]
			} else {
				raw[col] = nil
			}
		}
		rows = append(rows, opts.Mapping.row(raw))
	}
	return rows, nil
}

// Devices turns host names or addresses given on the command line into rows.
func Devices(hosts []string) []Row {
	rows := make([]Row, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.TrimSpace(h); h != "" {
			rows = append(rows, Row{"host": h})
		}
	}
	return rows
}
