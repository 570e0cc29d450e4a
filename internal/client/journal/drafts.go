package journal

import (
	"maps"
	"sync"
)

// Drafts holds unsent comment text per entry id
type Drafts struct {
	m  map[string]string
	mu sync.Mutex
}

func newDrafts() *Drafts {
	return &Drafts{m: make(map[string]string)}
}

// Set stores the draft for an entry. Empty text removes it.
func (d *Drafts) Set(entryID, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if text == "" {
		delete(d.m, entryID)
		return
	}
	d.m[entryID] = text
}

// Get returns the draft for an entry
func (d *Drafts) Get(entryID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.m[entryID]
}

// clearIf удаляет черновик, только если он не менялся с момента отправки
func (d *Drafts) clearIf(entryID, sent string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.m[entryID] == sent {
		delete(d.m, entryID)
	}
}

// Snapshot returns a copy of all drafts
func (d *Drafts) Snapshot() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.m)
}
