// registry.go keeps track of all named contexts
package syncplus

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// Global registry of all named contexts
	globalRegistry = newRegistry()
)

// Inspector is the read-only view of a context the registry hands out.
type Inspector interface {
	Name() string
	Kind() Kind
	Pending() []LockInfo
	Active() []LockInfo
	Stats() map[Operation]OpStats
}

type registry struct {
	sync.RWMutex
	contexts map[string]*tracker
}

func newRegistry() *registry {
	return &registry{contexts: make(map[string]*tracker)}
}

// register adds a context to the registry. A second context under the same
// name replaces the first.
func (r *registry) register(t *tracker) {
	r.Lock()
	defer r.Unlock()
	if prev, ok := r.contexts[t.name]; ok && prev != t {
		LogOnce(t.cfg.logger, "context name registered twice, keeping the newest",
			slog.String("context", t.name))
	}
	r.contexts[t.name] = t
}

// unregister removes t, leaving any newer context of the same name in place
func (r *registry) unregister(t *tracker) {
	r.Lock()
	defer r.Unlock()
	if r.contexts[t.name] == t {
		delete(r.contexts, t.name)
	}
}

// getAll returns all registered contexts sorted by name
func (r *registry) getAll() []*tracker {
	r.RLock()
	defer r.RUnlock()

	all := make([]*tracker, 0, len(r.contexts))
	for _, t := range r.contexts {
		all = append(all, t)
	}

	// Sort by name for consistent output
	sort.Slice(all, func(i, j int) bool {
		return all[i].name < all[j].name
	})

	return all
}

// Lookup returns the registered context called name.
func Lookup(name string) (Inspector, bool) {
	globalRegistry.RLock()
	defer globalRegistry.RUnlock()
	t, ok := globalRegistry.contexts[name]
	if !ok {
		return nil, false
	}
	return t, true
}

// Registered returns the names of all registered contexts, sorted.
func Registered() []string {
	all := globalRegistry.getAll()
	names := make([]string, len(all))
	for i, t := range all {
		names[i] = t.name
	}
	return names
}

// LockFilter selects which sections DumpAll prints.
type LockFilter uint8

const (
	ShowPendingShared LockFilter = 1 << iota
	ShowPendingExclusive
	ShowActiveShared
	ShowActiveExclusive
	ShowStats
)

// DumpAll returns detailed information about all registered contexts.
// filters controls which sections to show; no filters shows everything.
func DumpAll(filters ...LockFilter) string {
	var output strings.Builder
	all := globalRegistry.getAll()

	var combined LockFilter
	if len(filters) == 0 {
		combined = ShowPendingShared | ShowPendingExclusive | ShowActiveShared | ShowActiveExclusive | ShowStats
	} else {
		for _, f := range filters {
			combined |= f
		}
	}

	output.WriteString("=== syncplus Global Status ===\n\n")
	output.WriteString(fmt.Sprintf("Total Registered Contexts: %d\n", len(all)))
	output.WriteString(fmt.Sprintf("Active Filters: %s\n\n", describeFilters(combined)))

	if combined&(ShowPendingShared|ShowPendingExclusive) != 0 {
		output.WriteString("--- Contexts with Pending Locks ---\n")
		for _, t := range all {
			writeLockSection(&output, t, t.Pending(), "Pending", "Waiting",
				combined&ShowPendingShared != 0, combined&ShowPendingExclusive != 0)
		}
		output.WriteString("\n")
	}

	if combined&(ShowActiveShared|ShowActiveExclusive) != 0 {
		output.WriteString("--- Contexts with Active Locks ---\n")
		for _, t := range all {
			writeLockSection(&output, t, t.Active(), "Active", "Held",
				combined&ShowActiveShared != 0, combined&ShowActiveExclusive != 0)
		}
		output.WriteString("\n")
	}

	if combined&ShowStats != 0 {
		output.WriteString("--- Statistics ---\n")
		for _, t := range all {
			stats := t.Stats()
			if len(stats) == 0 {
				continue
			}
			output.WriteString(fmt.Sprintf("• %s (%s):\n", t.name, t.kind))
			ops := make([]Operation, 0, len(stats))
			for op := range stats {
				ops = append(ops, op)
			}
			sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
			for _, op := range ops {
				s := stats[op]
				output.WriteString(fmt.Sprintf("  %s: acquired %d, contentions %d, avg hold %v, max hold %v, max wait %v\n",
					op, s.Acquired, s.Contentions, s.AvgHeld(), s.MaxHeld, s.MaxWait))
			}
		}
		output.WriteString("\n")
	}

	return output.String()
}

func writeLockSection(output *strings.Builder, t *tracker, infos []LockInfo, label, since string, shared, exclusive bool) {
	var sharedInfos, exclusiveInfos []LockInfo
	for _, li := range infos {
		if li.GetAccess() == Shared {
			sharedInfos = append(sharedInfos, li)
		} else {
			exclusiveInfos = append(exclusiveInfos, li)
		}
	}

	var details strings.Builder
	write := func(access string, list []LockInfo) {
		details.WriteString(fmt.Sprintf("  %s %s: %d\n", label, access, len(list)))
		for _, li := range list {
			details.WriteString(fmt.Sprintf("    - Operation '%s', %s: %v, Goroutine: %d\n",
				li.GetOperation(), since, li.GetSinceTime().Round(time.Microsecond), li.GetGoroutineID()))
		}
	}
	if shared && len(sharedInfos) > 0 {
		write("Shared", sharedInfos)
	}
	if exclusive && len(exclusiveInfos) > 0 {
		write("Exclusive", exclusiveInfos)
	}

	if details.Len() > 0 {
		output.WriteString(fmt.Sprintf("• %s (%s):\n", t.name, t.kind))
		output.WriteString(details.String())
	}
}

// Helper function to describe active filters for output
func describeFilters(filter LockFilter) string {
	if filter == 0 {
		return "None"
	}

	var filters []string
	if filter&ShowPendingShared != 0 {
		filters = append(filters, "PendingShared")
	}
	if filter&ShowPendingExclusive != 0 {
		filters = append(filters, "PendingExclusive")
	}
	if filter&ShowActiveShared != 0 {
		filters = append(filters, "ActiveShared")
	}
	if filter&ShowActiveExclusive != 0 {
		filters = append(filters, "ActiveExclusive")
	}
	if filter&ShowStats != 0 {
		filters = append(filters, "Stats")
	}
	return strings.Join(filters, ", ")
}
