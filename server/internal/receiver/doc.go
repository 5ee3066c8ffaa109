// Package receiver accepts analyzed snapshots shipped by bizpulse-analyst
// instances (POST /api/v1/analyses, see package api).
//
// Receiver.Accept validates that source_id is non-empty and that a report is
// present unless the snapshot reports a failed load (ErrInvalidSnapshot
// otherwise), then stores the snapshot and evaluates alerts. Authentication
// is enforced upstream by the HTTP middleware (see package auth), so the
// receiver itself only performs structural validation.
package receiver
