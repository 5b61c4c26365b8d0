// Package http provides the bridge's control API handlers.
//
// A small HTTP surface stands in for a kernel module parameter and sysfs
// knob:
//
//	GET  /health       liveness plus attach/drain state
//	GET  /status       session cursors and drain totals
//	GET  /mode         consumer mode
//	PUT  /mode         {"mode": 0|1} or {"enabled": bool}
//	POST /drain        run one drain cycle now
//	GET  /log-level    daemon log level
//	PUT  /log-level    {"level": "debug"}
//	GET  /metrics      Prometheus exposition
//	GET  /metrics/json drain totals
//	GET  /ws/tail      live tail (WebSocket)
package http
