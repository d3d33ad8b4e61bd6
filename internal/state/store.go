package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/crane-app/crane/internal/runtime"
)

// Snapshot represents the latest container listing available to the UI.
type Snapshot struct {
	Containers          []runtime.Container // sorted by display name
	Networks            map[string][]string // network name -> container ids
	Pending             map[string]string   // container id -> action in progress
	HasData             bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
}

// IsOffline returns true when the runtime has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Container looks up a container by id.
func (s Snapshot) Container(id string) (runtime.Container, bool) {
	for _, c := range s.Containers {
		if c.ID == id {
			return c, true
		}
	}
	return runtime.Container{}, false
}

// IDs returns the ids of all listed containers in display order.
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s.Containers))
	for i, c := range s.Containers {
		ids[i] = c.ID
	}
	return ids
}

// NetworkNames returns every network with at least one attached container.
func (s Snapshot) NetworkNames() []string {
	names := make([]string, 0, len(s.Networks))
	for name := range s.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update replaces the stored listing. When err is non-nil the previous data is
// kept but the error is recorded for visibility.
func (s *Store) Update(containers []runtime.Container, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Containers = sortContainers(cloneContainers(containers))
	s.snapshot.Networks = indexNetworks(s.snapshot.Containers)
	for id := range s.snapshot.Pending {
		if _, ok := s.snapshot.Container(id); !ok {
			delete(s.snapshot.Pending, id)
		}
	}
	s.snapshot.HasData = true
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Remove drops a container without waiting for the next listing.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.snapshot.Containers[:0:0]
	for _, c := range s.snapshot.Containers {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.snapshot.Containers = kept
	s.snapshot.Networks = indexNetworks(kept)
	delete(s.snapshot.Pending, id)
}

// SetPending records that action (e.g. "stopping") is running on id. An empty
// action clears it.
func (s *Store) SetPending(id, action string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if action == "" {
		delete(s.snapshot.Pending, id)
		return
	}
	if s.snapshot.Pending == nil {
		s.snapshot.Pending = make(map[string]string)
	}
	s.snapshot.Pending[id] = action
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Containers = cloneContainers(s.snapshot.Containers)
	snap.Networks = make(map[string][]string, len(s.snapshot.Networks))
	for name, ids := range s.snapshot.Networks {
		snap.Networks[name] = append([]string(nil), ids...)
	}
	snap.Pending = make(map[string]string, len(s.snapshot.Pending))
	for id, action := range s.snapshot.Pending {
		snap.Pending[id] = action
	}
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneContainers(items []runtime.Container) []runtime.Container {
	if len(items) == 0 {
		return nil
	}
	dup := make([]runtime.Container, len(items))
	for i, c := range items {
		c.Ports = append([]runtime.Port(nil), c.Ports...)
		c.Networks = append([]runtime.Attachment(nil), c.Networks...)
		dup[i] = c
	}
	return dup
}

func sortContainers(items []runtime.Container) []runtime.Container {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].DisplayName(), items[j].DisplayName()
		if a != b {
			return a < b
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func indexNetworks(items []runtime.Container) map[string][]string {
	index := make(map[string][]string)
	for _, c := range items {
		for _, att := range c.Networks {
			if att.Network == "" {
				continue
			}
			index[att.Network] = append(index[att.Network], c.ID)
		}
	}
	return index
}
