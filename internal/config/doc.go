// Package config loads crane's TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/crane/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing, empty or non-positive, use defaults
//
// # Configuration Fields
//
//   - runtime: "container" (Apple container CLI, default) or "docker"
//   - container_bin: container CLI binary (default "container")
//   - container_root: container data root holding per-container logs
//   - docker_host: Docker endpoint override; DOCKER_HOST is honoured otherwise
//   - refresh_interval: container list refresh in seconds (default 1)
//   - logs_interval: log follow poll in seconds (default 3)
//   - initial_lines, older_lines: lines per initial and history load (100, 50)
//   - max_append_lines, max_prepend_lines: log window caps (2000, 1000)
//   - log_file, log_level: crane's own diagnostic log (~/.local/state/crane/crane.log, info)
//
// Paths starting with ~ are expanded against the user's home directory and
// made absolute. Config.Session converts the log settings into the form the
// session engine consumes.
package config
