// Package ws streams drained log lines to WebSocket clients.
//
// The Hub is registered as a sink next to the logger and file sinks; each
// connected client gets its own buffered queue. When a queue is full the
// line is dropped for that client only and the next delivered message
// carries the number dropped.
//
// Message Types (Server → Client):
//   - system: greeting with the client's ID
//   - line: one drained line, newline stripped
//   - pong: reply to a client ping
//
// Message Types (Client → Server):
//   - ping: keep-alive ping
//
// Example Usage:
//
//	hub := ws.NewHub(logger, metrics)
//	router.GET("/ws/tail", hub.HandleConnection)
package ws
