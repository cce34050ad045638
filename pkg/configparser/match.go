package configparser

import (
	"fmt"
	"strings"
)

// Match operators.
const (
	OpExact               = ""
	OpInsensitiveExact    = "ie"
	OpInsensitiveContains = "ic"
	OpContains            = "c"
)

// Match selects configuration lines. The zero Op is a case-sensitive exact
// match.
type Match struct {
	Op                  string
	Value               string
	IgnoreLeadingSpaces bool
}

// ParseMatch builds a Match from a rule mapping such as
// {"match__ic": "ip helper", "ignore_leading_spaces": true}.
func ParseMatch(rule map[string]interface{}) (Match, error) {
	var m Match
	found := false
	for k, v := range rule {
		switch {
		case k == "ignore_leading_spaces":
			b, _ := v.(bool)
			m.IgnoreLeadingSpaces = b
		case k == "match" || strings.HasPrefix(k, "match__"):
			s, ok := v.(string)
			if !ok {
				return Match{}, fmt.Errorf("%s must be a string", k)
			}
			m.Value = s
			if i := strings.Index(k, "__"); i >= 0 {
				m.Op = k[i+2:]
			}
			found = true
		}
	}
	if !found {
		return Match{}, fmt.Errorf("rule has no match key")
	}
	switch m.Op {
	case OpExact, OpInsensitiveExact, OpInsensitiveContains, OpContains:
	default:
		return Match{}, fmt.Errorf("unsupported match operator %q", m.Op)
	}
	return m, nil
}

// Line reports whether line matches.
func (m Match) Line(line string) bool {
	if m.IgnoreLeadingSpaces {
		line = strings.TrimLeft(line, " \t")
	}
	switch m.Op {
	case OpInsensitiveExact:
		return strings.EqualFold(line, m.Value)
	case OpInsensitiveContains:
		return strings.Contains(strings.ToLower(line), strings.ToLower(m.Value))
	case OpContains:
		return strings.Contains(line, m.Value)
	default:
		return line == m.Value
	}
}

// FindInGlobal reports whether any global line matches.
func (c *Config) FindInGlobal(m Match) bool {
	for _, line := range c.GlobalConfig() {
		if m.Line(line) {
			return true
		}
	}
	return false
}

// FindInInterfaces returns the interfaces with at least one matching line,
// in configuration order.
func (c *Config) FindInInterfaces(m Match) []string {
	var (
		out     []string
		current string
		seen    = make(map[string]bool)
	)
	for _, line := range c.Section("interfaces") {
		if isInterfaceLine(line) {
			current = strings.Join(strings.Fields(line)[1:], "")
		}
		if current != "" && !seen[current] && m.Line(line) {
			seen[current] = true
			out = append(out, current)
		}
	}
	return out
}
