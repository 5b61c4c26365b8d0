// Package server assembles the control API: gin router, middleware stack,
// handlers and the HTTP server lifecycle.
package server
