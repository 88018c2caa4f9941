package core

// MappingSeverity is the validation outcome of a field map or a single
// row. Severities form a total order; merging takes the maximum and never
// lowers an established severity.
type MappingSeverity int

// Severity levels, from least to most severe.
const (
	SeverityOK MappingSeverity = iota
	SeverityIncomplete
	SeverityError
)

// String returns the severity as a short label.
func (s MappingSeverity) String() string {
	switch s {
	case SeverityOK:
		return "ok"
	case SeverityIncomplete:
		return "incomplete"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MappingStatus aggregates the validation outcome of mapping rows: a
// severity plus an ordered list of human-readable messages. A fresh status
// is OK with no messages. Statuses are created per validation pass and
// discarded after being reported.
type MappingStatus struct {
	severity MappingSeverity
	messages []string
}

// NewMappingStatus returns a fresh OK status.
func NewMappingStatus() *MappingStatus {
	return &MappingStatus{}
}

// AddError appends a message and raises the severity to at least error.
func (s *MappingStatus) AddError(msg string) {
	s.messages = append(s.messages, msg)
	s.Merge(SeverityError)
}

// AddIncomplete appends a message and raises the severity to at least
// incomplete.
func (s *MappingStatus) AddIncomplete(msg string) {
	s.messages = append(s.messages, msg)
	s.Merge(SeverityIncomplete)
}

// Merge raises the severity to the maximum of the current and given
// values. It never lowers severity.
func (s *MappingStatus) Merge(other MappingSeverity) {
	if other > s.severity {
		s.severity = other
	}
}

// Severity returns the current severity.
func (s *MappingStatus) Severity() MappingSeverity {
	return s.severity
}

// Messages returns the accumulated messages in insertion order.
func (s *MappingStatus) Messages() []string {
	return s.messages
}

// IsOK reports whether no problem has been recorded.
func (s *MappingStatus) IsOK() bool { return s.severity == SeverityOK }

// IsIncomplete reports whether the worst recorded problem is an incomplete
// mapping.
func (s *MappingStatus) IsIncomplete() bool { return s.severity == SeverityIncomplete }

// IsError reports whether a fatal mapping problem has been recorded.
func (s *MappingStatus) IsError() bool { return s.severity == SeverityError }
