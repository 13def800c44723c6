// Package featureflags evaluates the FEATURE_FLAGS setting. Flags are
// resolved per society so a policy change can be rolled out one gate at a
// time.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Policy names the lifecycle rule set a society runs under.
type Policy string

const (
	PolicyStrict     Policy = "strict"
	PolicyPermissive Policy = "permissive"
)

// Manager holds flags parsed from a comma-separated list. A value is one of
// on/off, a percentage of societies ("25%"), or a "|" separated list of
// society names:
//
//	permissive_lifecycle=Green Acres|Blue Hills,gate_barrier=50%
type Manager struct {
	flags map[string]string
}

// NewManager parses raw and silently skips malformed pairs.
func NewManager(raw string) *Manager {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return &Manager{flags: out}
}

// Enabled reports whether name is on for society. Percentage rollouts hash
// the society name, so every gate of one society sees the same answer.
func (m *Manager) Enabled(name, society string) bool {
	if m == nil {
		return false
	}
	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if pctRaw, ok := strings.CutSuffix(value, "%"); ok {
		pct, err := strconv.Atoi(pctRaw)
		switch {
		case err != nil, pct <= 0:
			return false
		case pct >= 100:
			return true
		case society == "":
			return false
		}
		return rolloutBucket(name, society) < pct
	}

	society = normalize(society)
	if society == "" {
		return false
	}
	for _, s := range strings.Split(value, "|") {
		if strings.TrimSpace(s) == society {
			return true
		}
	}
	return false
}

// EnabledOr is Enabled for configured flags and def for the rest.
func (m *Manager) EnabledOr(name, society string, def bool) bool {
	if m == nil {
		return def
	}
	if _, ok := m.flags[normalize(name)]; !ok {
		return def
	}
	return m.Enabled(name, society)
}

// LifecyclePolicy returns the transition policy for society.
func (m *Manager) LifecyclePolicy(society string) Policy {
	if m.Enabled(PermissiveLifecycle, society) {
		return PolicyPermissive
	}
	return PolicyStrict
}

// Raw returns a copy of the configured flags.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot evaluates every configured flag for one society.
func (m *Manager) Snapshot(society string) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, society)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, society string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%s", normalize(name), normalize(society))))
	return int(h.Sum32() % 100)
}
