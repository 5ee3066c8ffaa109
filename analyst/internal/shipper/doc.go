// Package shipper sends analyzed snapshots to bizpulse-server as JSON over
// HTTP (POST /api/v1/analyses).
//
// Shipper.Ship() is non-blocking: outcomes are converted to types.Snapshot
// and placed in an in-memory channel (capacity analyst.buffer_size). When
// the buffer is full the oldest entry is evicted so the latest results are
// always preserved.
//
// Shipper.Run() drains the buffer in a loop, retrying with truncated
// exponential backoff (1s→60s, ±25% jitter) on connection errors and
// 5xx/429 responses. Other 4xx responses discard the snapshot immediately
// rather than retrying.
//
// Shipper.Send() delivers one outcome synchronously and is used by the
// one-shot `analyst run` command.
package shipper
