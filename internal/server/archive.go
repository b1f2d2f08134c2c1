package server

import (
	"sort"
	"sync"
)

// ArchiveStore is the presentation-layer archive overlay: a tag set keyed by
// request id. It has no effect on request status and produces no audit
// entries; archiving is not CANCELED and not DECLINED.
type ArchiveStore struct {
	mu   sync.RWMutex
	tags map[string]map[string]struct{} // businessID -> requestIDs
}

func NewArchiveStore() *ArchiveStore {
	return &ArchiveStore{tags: make(map[string]map[string]struct{})}
}

func (a *ArchiveStore) Tag(businessID, requestID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tags[businessID] == nil {
		a.tags[businessID] = make(map[string]struct{})
	}
	a.tags[businessID][requestID] = struct{}{}
}

func (a *ArchiveStore) Untag(businessID, requestID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tags[businessID], requestID)
}

func (a *ArchiveStore) List(businessID string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.tags[businessID]))
	for id := range a.tags[businessID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
