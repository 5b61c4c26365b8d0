// Package config provides 12-factor configuration management for teelogd.
//
// Precedence, lowest first: Default(), an optional YAML/TOML file,
// environment variables, then CLI flags applied by the command.
//
// Configuration Sections:
//   - Server: control API (host, port, enabled)
//   - Shm: backing file/device, physical address (byte offset) and size
//   - Drain: interval, per-cycle read cap, line max, initial mode
//   - Attach: how long to retry while the producer is not ready
//   - Sinks: file, archive, remote and live-tail sinks
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting of the control API
//
// Example Usage:
//
//	cfg, err := config.LoadFile("/etc/teelog.yaml")
//	if err == nil {
//		err = cfg.Validate()
//	}
//
// Environment Variables:
//   - PORT, HOST, SERVER_ENABLED
//   - SHM_PATH, SHM_ADDR (0x-prefixed hex accepted), SHM_SIZE
//   - DRAIN_INTERVAL, DRAIN_READ_MAX, DRAIN_LINE_MAX, DRAIN_MODE
//   - ATTACH_RETRY_MAX_ELAPSED
//   - SINK_FILE, SINK_FILE_MAX_MB, SINK_FILE_BACKUPS, SINK_ARCHIVE,
//     SINK_REMOTE_URL, SINK_TAIL
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
