// Package session manages the log sessions of containers.
//
// A Manager keeps one session per container id reported by the container
// list. A session starts Uninitialized and opens its streams lazily on the
// first Open, which loads a window near the end of each stream and leaves the
// session Ready. From then on:
//
//   - RequestTail reads what every stream appended since its bookmark.
//   - RequestOlder recovers history before the oldest loaded byte.
//   - SelectStream, SetFollow and SetUserScrolled decide whether a background
//     task follow-polls the active stream every PollInterval.
//
// Removal tears a session down: its context is cancelled, the poll task is
// awaited, handles are closed and any result that arrives later is
// discarded. A session recreated for the same id is a new object, so stale
// reads can never land in it.
//
// Presentation code reads state with Lines and Snapshot and learns about
// updates from Changes.
package session
