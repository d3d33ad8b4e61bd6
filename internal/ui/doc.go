// Package ui is crane's Bubble Tea terminal interface.
//
// # Views
//
//   - Containers: table of containers with state, resources and ports, plus a
//     detail pane for the selection (id, status, age, networks)
//   - Logs: the log window of one stream of the selected container
//   - Networks: each network with the containers attached to it
//   - Create: a form that builds a runtime.CreateSpec
//
// # Data Flow
//
// The model never talks to the runtime directly. Container data comes from
// state.Store snapshots pulled once per second; lifecycle actions go through
// the Actions interface and report back as messages. Log content lives in
// session.Manager: the model asks it to open, tail or load history, and
// redraws whenever the manager's change channel names the watched container.
//
// # Log View Behavior
//
// Entering the view opens the container's session (a no-op once loaded).
// Following keeps the view pinned to the newest line while the manager polls
// the active stream. Scrolling up marks the stream as user-scrolled, which
// pauses polling; reaching the top loads older lines and the scroll
// position is kept. Leaving the view switches follow off so no poll runs for
// a log nobody is watching, and returning switches it back on.
//
// # Preferences
//
// Theme (T) and auto refresh (a) are saved to prefs.toml as they change.
package ui
