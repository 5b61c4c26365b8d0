// Command teelogd bridges a secure-world log ring into the normal world.
//
// It maps the shared region, validates the producer's control block, then
// drains it once per interval on a single worker, forwarding every line to
// a zap logger named "tee" plus any configured file, archive, remote and
// live-tail sinks. A small HTTP API exposes status, mode toggling and
// Prometheus metrics.
//
// Usage:
//
//	# Drain the simulator's region with debug logs
//	teelogd --shm-path /dev/shm/teelog --shm-size 262144 --dev
//
//	# Physical region on a board, config from a file
//	teelogd -c /etc/teelog.yaml --shm-path /dev/mem --shm-addr 0x8f000000
//
// Signals:
//   - SIGINT, SIGTERM: stop draining, unmap, notify the producer, exit
package main
