// Package app is crane's composition root.
//
// # Overview
//
// This package wires configuration, logging, the runtime backend, the
// container store, the log session manager and the UI. It also owns the
// behaviour that spans several of those pieces: the container list poller and
// the lifecycle actions.
//
// # Startup
//
//  1. Load ~/.config/crane/config.toml (defaults when missing)
//  2. Open the diagnostic log file
//  3. Build the backend named by runtime ("container" or "docker")
//  4. Ping the runtime (5 second timeout); failure is fatal
//  5. Start the poller, refresh once, then run the TUI until exit
//
// # Components
//
//   - app.go: Run
//   - backend.go: NewClient, backend selection
//   - service.go: Service, Refresh and the start/stop/remove/create actions
//   - poller.go: Poller, timed refresh with exponential backoff
//
// # Data Flow
//
//	Poller ──> Service.Refresh ──> runtime.Client.ListContainers
//	                          ├──> state.Store.Update
//	                          └──> session.Manager.Sync
//
//	UI ──> Service.Start/Stop/Remove/Create
//	UI ──> session.Manager (RequestOlder, SetFollow, SelectStream, ...)
//
// # Polling Behavior
//
// The poller refreshes every refresh_interval seconds (default 1). Each
// consecutive failure doubles the delay, capped at 30 seconds; one success
// resets it. With auto refresh off only manual triggers refresh.
//
// # Lifecycle Actions
//
// Every action marks the container pending in the store while the runtime
// call runs. Start reloads the container's log session since a restarted
// container may have new streams. Remove tears the session down before the
// runtime deletes the files behind it.
//
// # Error Handling
//
// Fatal (returned from Run): invalid config, log file not writable, backend
// construction, runtime unreachable at startup. Everything after startup is
// recorded in the store or the log session and logged; the UI stays up.
package app
