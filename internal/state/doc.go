// Package state provides thread-safe state management for the crane application.
//
// # Overview
//
// This package implements a simple but thread-safe store for sharing the
// container listing between the background poller and the UI. It acts as the
// coordination point where polling updates meet UI rendering. Log contents do
// not live here; they are owned by the session package.
//
// # Architecture
//
// The package follows a producer-consumer pattern:
//
//	Producer (Poller):             Consumer (UI):
//	┌──────────────────┐          ┌──────────────────┐
//	│ ListContainers() │          │                  │
//	│      ↓           │          │                  │
//	│ store.Update()   │─────────→│ store.Snapshot() │
//	│      ↓           │ (mutex)  │      ↓           │
//	│  repeat...       │          │  render UI       │
//	└──────────────────┘          └──────────────────┘
//
// # Core Types
//
// Store:
//   - Thread-safe container for the latest listing
//   - Uses sync.RWMutex for concurrent access
//   - Writers: the poller (Update) and lifecycle actions (Remove, SetPending)
//
// Snapshot:
//   - Containers sorted by display name
//   - Networks index: network name to the ids of attached containers
//   - Pending actions per container ("starting", "stopping", "removing")
//   - Timestamps and failure counters for the offline indicator
//
// # Update Semantics
//
//	// Success: replace the listing and rebuild the networks index
//	store.Update(containers, nil)
//
//	// Error: keep the old listing, record the error
//	store.Update(nil, err)
//
// This ensures the UI always has the most recent successful data to display,
// while also being informed of polling failures. Two failures in a row mark
// the snapshot offline.
//
// # Defensive Copying
//
// Snapshot returns deep copies of the container slice, port and attachment
// slices, the networks index and the pending map, so callers may mutate what
// they receive.
package state
