// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Sampling is disabled so repeated drained lines all reach the output.
// The level is atomic and can be changed at runtime (the control API's
// PUT /log-level uses this).
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Session attached", zap.String("path", "/dev/mem"))
//	logger.Error("Failed to re-arm drain", zap.Error(err))
package logging
