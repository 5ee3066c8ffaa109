// Package store keeps the latest snapshot of every source in memory, with
// TTL eviction so sources that stop reporting drop out of the API.
//
// Besides the latest snapshot, each Entry remembers when the source first
// reported, how many snapshots it sent, and its last analyzed snapshot, so a
// source whose loads start failing still shows its last known report.
package store
