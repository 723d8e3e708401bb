package domain

import "time"

// Checkpoint is the durable resume point of a run.
//
// LastWrittenIndex equals the write cursor: rows [0, LastWrittenIndex) are in
// the output. OutputOffset is the byte size of the output right after the last
// written row, used to drop rows written after the checkpoint on resume.
type Checkpoint struct {
	LastWrittenIndex int       `json:"last_written_index" db:"last_written_index"`
	InputFingerprint string    `json:"input_fingerprint"  db:"input_fingerprint"`
	SourcePath       string    `json:"source_path"        db:"source_path"`
	OutputOffset     int64     `json:"output_offset"      db:"output_offset"`
	UpdatedAt        time.Time `json:"updated_at"         db:"updated_at"`
}
