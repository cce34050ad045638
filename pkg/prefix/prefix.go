// Package prefix resolves the chain of containing prefixes for an address
// against a table of per-prefix default values.
package prefix

import (
	"net"
	"sort"

	"github.com/yl2chen/cidranger"

	"github.com/newtron-network/sotboard/pkg/util"
)

// Default-all prefixes used when nothing more specific matches.
const (
	DefaultIPv4 = "0.0.0.0/0"
	DefaultIPv6 = "::/0"
)

// Table maps a CIDR prefix to the default values applied to devices inside it.
type Table map[string]map[string]interface{}

// Path is an ordered list of table keys, least specific first.
type Path []string

// Last returns the most specific prefix of the path, or "".
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// entry keeps the table key as written next to its parsed network so the
// path reports keys the caller can look up again.
type entry struct {
	network net.IPNet
	key     string
}

func (e entry) Network() net.IPNet {
	return e.network
}

// Index is a longest-prefix-match index over the keys of a Table. It is
// read-only after construction and safe for concurrent use.
type Index struct {
	ranger cidranger.Ranger
	keys   map[string]struct{}
}

// NewIndex inserts every key of table into a radix index. Keys that do not
// parse as CIDR prefixes are skipped with a warning.
func NewIndex(table Table) *Index {
	idx := &Index{
		ranger: cidranger.NewPCTrieRanger(),
		keys:   make(map[string]struct{}, len(table)),
	}

	// Sorted so the winner among duplicate networks ("10.0.0.1/8" and
	// "10.0.0.0/8") is stable.
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[string]string)
	for _, k := range keys {
		_, network, err := net.ParseCIDR(k)
		if err != nil {
			util.WithField("prefix", k).Warn("Skipping malformed prefix in defaults table")
			continue
		}
		if prev, dup := seen[network.String()]; dup {
			util.WithField("prefix", k).Warnf("Prefix duplicates %s, ignored", prev)
			continue
		}
		seen[network.String()] = k
		if err := idx.ranger.Insert(entry{network: *network, key: k}); err != nil {
			util.WithField("prefix", k).Warnf("Could not index prefix: %v", err)
			continue
		}
		idx.keys[k] = struct{}{}
	}
	return idx
}

// Path returns the table keys containing ip, least specific first. When ip
// is malformed or nothing matches, the path falls back to the default-all
// prefix if the table has one, and is empty otherwise. Lookup problems are
// logged, never returned.
func (idx *Index) Path(ip string) Path {
	addr := net.ParseIP(util.StripMask(ip))
	if addr == nil {
		util.WithField("ip", ip).Warn("Invalid address for prefix lookup, using default prefix")
		return idx.fallback(ip)
	}

	matches, err := idx.ranger.ContainingNetworks(addr)
	if err != nil {
		util.WithField("ip", ip).Warnf("Prefix lookup failed, using default prefix: %v", err)
		return idx.fallback(ip)
	}
	if len(matches) == 0 {
		util.WithField("ip", ip).Debug("No prefix contains address, using default prefix")
		return idx.fallback(ip)
	}

	// Walk from the most specific match towards the root, then reverse so
	// later entries override earlier ones when folded.
	sort.SliceStable(matches, func(i, j int) bool {
		oi, _ := maskOf(matches[i]).Size()
		oj, _ := maskOf(matches[j]).Size()
		return oi > oj
	})
	path := make(Path, 0, len(matches))
	for i := len(matches) - 1; i >= 0; i-- {
		path = append(path, matches[i].(entry).key)
	}
	return path
}

func maskOf(e cidranger.RangerEntry) net.IPMask {
	n := e.Network()
	return n.Mask
}

func (idx *Index) fallback(ip string) Path {
	def := DefaultIPv4
	if addr := net.ParseIP(util.StripMask(ip)); addr != nil && addr.To4() == nil {
		def = DefaultIPv6
	}
	if _, ok := idx.keys[def]; ok {
		return Path{def}
	}
	return Path{}
}

// Resolve is a one-shot helper: it indexes table and returns the path for ip.
func Resolve(table Table, ip string) Path {
	return NewIndex(table).Path(ip)
}
