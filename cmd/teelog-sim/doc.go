// Command teelog-sim formats a file-backed log ring and writes to it as a
// secure-world producer would.
//
// Usage:
//
//	# Heartbeat lines every 100ms into /dev/shm/teelog
//	teelog-sim
//
//	# Pipe a file through the ring, then leave the region for inspection
//	teelog-sim --stdin --keep < boot.log
package main
