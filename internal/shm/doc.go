// Package shm maps shared memory regions into the process.
//
// A region is a byte range of a file or device: /dev/mem for a physical
// carve-out shared with the secure world, or a file under /dev/shm when the
// producer is the local simulator. Mappings are always MAP_SHARED so that
// both sides observe each other's writes.
package shm
