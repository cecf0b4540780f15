// Package guard tracks why an installation is busy.
//
// Each installation holds a set of reasons keyed by id. Subsystems add and
// remove their own reason without touching the others, and an installation
// is busy while its set is non-empty. Nothing here ever blocks: callers ask
// and decide, they never wait.
package guard

import (
	"sort"
	"sync"
)

// AppScope is the key for reasons that are not tied to one installation,
// such as work that must finish before the application may close.
const AppScope = "@app"

// Well-known reason ids.
const (
	ReasonPlaying        = "playing"
	ReasonBackingUp      = "backing-up"
	ReasonRestoring      = "restoring-backup"
	ReasonEditingMods    = "editing-mods"
	ReasonDeleting       = "deleting"
	ReasonDeletingBackup = "deleting-backup"
)

type Reason struct {
	ID          string
	Description string
}

type Guard struct {
	mu      sync.Mutex
	entries map[string]map[string]string
}

func New() *Guard {
	return &Guard{entries: make(map[string]map[string]string)}
}

// Acquire adds reasonID to the installation's set. Acquiring a reason that is
// already held only refreshes its description.
func (g *Guard) Acquire(installationID, reasonID, description string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.add(installationID, reasonID, description)
}

// TryAcquire adds reasonID only if the installation is idle. When it is busy
// the current reasons are returned and nothing changes.
func (g *Guard) TryAcquire(installationID, reasonID, description string) ([]Reason, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if set := g.entries[installationID]; len(set) > 0 {
		return sortedReasons(set), false
	}
	g.add(installationID, reasonID, description)
	return nil, true
}

func (g *Guard) Release(installationID, reasonID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.entries[installationID]
	if !ok {
		return
	}
	delete(set, reasonID)
	if len(set) == 0 {
		delete(g.entries, installationID)
	}
}

func (g *Guard) IsBusy(installationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries[installationID]) > 0
}

// Reasons returns the installation's reasons ordered by id.
func (g *Guard) Reasons(installationID string) []Reason {
	g.mu.Lock()
	defer g.mu.Unlock()
	return sortedReasons(g.entries[installationID])
}

// AnyBusy reports whether any installation or the app scope holds a reason.
func (g *Guard) AnyBusy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries) > 0
}

// All returns a copy of every non-empty reason set.
func (g *Guard) All() map[string][]Reason {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string][]Reason, len(g.entries))
	for id, set := range g.entries {
		out[id] = sortedReasons(set)
	}
	return out
}

func (g *Guard) add(installationID, reasonID, description string) {
	set, ok := g.entries[installationID]
	if !ok {
		set = make(map[string]string)
		g.entries[installationID] = set
	}
	set[reasonID] = description
}

func sortedReasons(set map[string]string) []Reason {
	if len(set) == 0 {
		return nil
	}
	out := make([]Reason, 0, len(set))
	for id, desc := range set {
		out = append(out, Reason{ID: id, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
