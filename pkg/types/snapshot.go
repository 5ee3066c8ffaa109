package types

import "github.com/bizpulse/bizpulse/pkg/analysis"

// Snapshot is one analyzed observation of a source, shipped by the analyst
// to POST /api/v1/analyses.
//
// When ErrorMessage is set the source could not be loaded or its record was
// invalid; Metrics and Report are then nil.
type Snapshot struct {
	SourceID      string            `json:"source_id"`
	SourceType    string            `json:"source_type"`
	TimestampUnix int64             `json:"timestamp_unix"`
	Metrics       *analysis.Metrics `json:"metrics,omitempty"`
	Report        *analysis.Report  `json:"report,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
}

// Failed reports whether the snapshot carries an error instead of a report.
func (s *Snapshot) Failed() bool { return s.ErrorMessage != "" }
