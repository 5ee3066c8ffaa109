// Package ws streams the live source snapshot to browser clients.
//
// The server mounts a Hub at /ws/stream. On connect a client receives the
// current snapshot, then one message every broadcast_interval and one right
// after each ingested snapshot (Hub.Notify). Messages look like
//
//	{"event": "snapshot" | "update", "data": <GET /api/v1/snapshot body>}
//
// Each message carries the whole state, so a slow client is never queued
// behind: its pending message is replaced by the newest one.
//
// The upgrader accepts all origins; restrict them at the reverse proxy.
package ws
