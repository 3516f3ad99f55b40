package state

import "time"

// State records how far a file session has progressed.
// It is saved after each window; no correlation values are kept.
type State struct {
	// Path is the source file the offset refers to
	Path string `json:"path"`

	// Offset is the byte offset of the first unread line
	Offset int64 `json:"offset"`

	// Windows is the number of windows completed so far
	Windows uint64 `json:"windows"`

	// SessionID identifies the session that wrote the state
	SessionID string `json:"session_id,omitempty"`

	// UpdatedAt is when the state was last written
	UpdatedAt time.Time `json:"updated_at"`
}

// IsEmpty returns true if the state has not been initialized.
func (s State) IsEmpty() bool {
	return s.Path == ""
}

// Matches reports whether the state belongs to path.
func (s State) Matches(path string) bool {
	return s.Path != "" && s.Path == path
}

// Advance moves the state to offset after one more completed window.
func (s *State) Advance(path string, offset int64) {
	s.Path = path
	s.Offset = offset
	s.Windows++
	s.UpdatedAt = time.Now()
}
