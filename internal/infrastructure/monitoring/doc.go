/*
Package monitoring provides Prometheus metrics for the log bridge.

# Overview

Metrics live in a private registry per collector, so tests and multiple
sessions never collide on global registration. The collector implements
shmlog.Observer and is attached to the drainer.

# Metrics

- teelog_drain_cycles_total{result}: ok, empty, skipped, error
- teelog_bytes_drained_total, teelog_lines_emitted_total
- teelog_lines_synthetic_total: lines that received a synthetic newline
- teelog_sink_errors_total, teelog_reassembly_errors_total
- teelog_rearm_failures_total: the periodic drain stopped
- teelog_reader_offset_bytes, teelog_writer_offset_bytes
- teelog_http_*: control API traffic

# Usage

	metrics := monitoring.NewMetrics()
	drainer.WithObserver(metrics)
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
