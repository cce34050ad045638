package onboarding

import (
	"context"
	"fmt"
	"sort"

	"github.com/newtron-network/sotboard/pkg/configparser"
	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/util"
)

// Tag scopes.
const (
	ScopeDevice    = "dcim.device"
	ScopeInterface = "dcim.interface"
)

// TagProperty assigns one tag to the device or to one of its interfaces.
type TagProperty struct {
	Name      string `json:"name" yaml:"name"`
	Scope     string `json:"scope" yaml:"scope"`
	Interface string `json:"interface,omitempty" yaml:"interface,omitempty"`
}

// TagResult reports per scope whether tags were written.
type TagResult struct {
	Device    bool
	Interface bool
}

// LegacyOK is true when at least one interface got its tags; device tags do
// not count. Callers that need the per-scope outcome use the fields.
func (r TagResult) LegacyOK() bool {
	return r.Interface
}

// ApplyTags adds device-scope tags to dev and interface-scope tags to the
// named interfaces, or replaces their tags with ReplaceTags. Tags the
// source of truth does not know are dropped.
// Failures on one interface do not stop the others.
func (r *Reconciler) ApplyTags(ctx context.Context, dev *sot.Device, tags []TagProperty) (TagResult, *Result) {
	var result TagResult
	if dev == nil {
		res := NewResult("")
		res.Record(StepTags, "", &UnknownDeviceError{})
		return result, res
	}
	res := NewResult(dev.Name)
	res.DeviceID = dev.ID
	log := util.WithStep(dev.Name, string(StepTags))

	var deviceTags []string
	interfaceTags := make(map[string][]string)
	for _, t := range tags {
		switch t.Scope {
		case ScopeDevice:
			deviceTags = append(deviceTags, t.Name)
		case ScopeInterface:
			interfaceTags[t.Interface] = append(interfaceTags[t.Interface], t.Name)
		default:
			log.Warnf("tag %s has unknown scope '%s'", t.Name, t.Scope)
		}
	}

	if len(deviceTags) > 0 {
		refs := r.knownTags(ctx, dev.Name, r.tagNames(dev.Tags, deviceTags))
		log.Infof("setting tags %v on device", sot.TagNames(refs))
		err := r.client.UpdateDevice(ctx, dev.ID, sot.Properties{sot.KeyTags: refs})
		if err != nil {
			log.Errorf("failed to add device tags: %v", err)
		} else {
			dev.Tags = sot.TagNames(refs)
			result.Device = true
		}
		res.Record(StepTags, dev.Name, err)
	}

	names := make([]string, 0, len(interfaceTags))
	for name := range interfaceTags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		intf, err := r.client.GetInterface(ctx, dev.ID, name)
		if err == nil && intf == nil {
			err = fmt.Errorf("interface %s: %w", name, util.ErrNotFound)
		}
		if err != nil {
			log.Errorf("failed to add interface tags: %v", err)
			res.Record(StepTags, name, err)
			continue
		}
		refs := r.knownTags(ctx, dev.Name, r.tagNames(intf.Tags, interfaceTags[name]))
		log.Infof("setting tags %v on %s", sot.TagNames(refs), name)
		if err := r.client.UpdateInterface(ctx, intf.ID, sot.Properties{sot.KeyTags: refs}); err != nil {
			log.Errorf("failed to add interface tags to %s: %v", name, err)
			res.Record(StepTags, name, err)
			continue
		}
		res.Record(StepTags, name, nil)
		result.Interface = true
	}
	return result, res
}

func (r *Reconciler) tagNames(current, add []string) []string {
	if r.opts.ReplaceTags {
		current = nil
	}
	return mergeTagNames(current, add)
}

// mergeTagNames appends names missing from current.
func mergeTagNames(current, add []string) []string {
	seen := make(map[string]bool, len(current)+len(add))
	out := make([]string, 0, len(current)+len(add))
	for _, n := range append(append([]string(nil), current...), add...) {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// TagRule tags the device, or each matching interface, when the
// configuration contains a matching line. A device rule without a match
// always applies.
type TagRule struct {
	Name  string
	Scope string
	Match *configparser.Match
}

// ParseTagRules reads rules shaped like
// {name: core, scope: dcim.device, match__ic: "router bgp"}.
func ParseTagRules(raw []map[string]interface{}) ([]TagRule, error) {
	var (
		rules []TagRule
		vb    util.ValidationBuilder
	)
	for i, item := range raw {
		name := util.StringValue(item["name"])
		scope := util.StringValue(item["scope"])
		if scope == "" {
			scope = ScopeDevice
		}
		vb.Add(name != "", fmt.Sprintf("tag rule %d: name is required", i))
		vb.Add(scope == ScopeDevice || scope == ScopeInterface,
			fmt.Sprintf("tag rule %d: unknown scope '%s'", i, scope))

		rule := TagRule{Name: name, Scope: scope}
		if hasMatchKey(item) {
			m, err := configparser.ParseMatch(item)
			if err != nil {
				vb.AddErrorf("tag rule %d: %v", i, err)
				continue
			}
			rule.Match = &m
		} else if scope == ScopeInterface {
			vb.AddErrorf("tag rule %d: interface rules need a match", i)
		}
		rules = append(rules, rule)
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}
	return rules, nil
}

func hasMatchKey(item map[string]interface{}) bool {
	for k := range item {
		if k == "match" || len(k) > 7 && k[:7] == "match__" {
			return true
		}
	}
	return false
}

// EvaluateTagRules returns the tags the rules assign for a configuration.
func EvaluateTagRules(rules []TagRule, parser configparser.Parser) []TagProperty {
	var out []TagProperty
	for _, rule := range rules {
		switch rule.Scope {
		case ScopeDevice:
			if rule.Match == nil || parser.FindInGlobal(*rule.Match) {
				out = append(out, TagProperty{Name: rule.Name, Scope: ScopeDevice})
			}
		case ScopeInterface:
			for _, name := range parser.FindInInterfaces(*rule.Match) {
				out = append(out, TagProperty{Name: rule.Name, Scope: ScopeInterface, Interface: name})
			}
		}
	}
	return out
}
