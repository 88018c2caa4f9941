package core

import (
	"encoding/json"
	"fmt"
)

// LocatorKind distinguishes literal event/form/field names from the
// reserved mapping tokens. Keeping the tokens out of the literal namespace
// removes a whole class of string-comparison bugs at resolution time.
type LocatorKind int

// Locator kinds.
const (
	// LocatorBlank is an unset locator (empty string on the wire).
	LocatorBlank LocatorKind = iota
	// LocatorLiteral names a concrete event, form, or field.
	LocatorLiteral
	// LocatorAll expands to every candidate at that level.
	LocatorAll
	// LocatorMatching reuses the corresponding source locator. Destination
	// side only.
	LocatorMatching
	// LocatorEquivalent picks the destination field with the same name as
	// the resolved source field. Destination field only.
	LocatorEquivalent
	// LocatorCompatible is LocatorEquivalent plus a compatibility check on
	// the paired variables. Destination field only.
	LocatorCompatible
)

// Reserved locator tokens as they appear on the wire.
const (
	tokenAll        = "ALL"
	tokenMatching   = "MATCHING"
	tokenEquivalent = "EQUIVALENT"
	tokenCompatible = "COMPATIBLE"
)

// Locator is one event/form/field slot of a mapping row: either blank, a
// literal name, or a reserved token.
type Locator struct {
	Kind LocatorKind
	Name string // set only for LocatorLiteral
}

// ParseLocator classifies a raw wire string into a Locator.
func ParseLocator(raw string) Locator {
	switch raw {
	case "":
		return Locator{Kind: LocatorBlank}
	case tokenAll:
		return Locator{Kind: LocatorAll}
	case tokenMatching:
		return Locator{Kind: LocatorMatching}
	case tokenEquivalent:
		return Locator{Kind: LocatorEquivalent}
	case tokenCompatible:
		return Locator{Kind: LocatorCompatible}
	default:
		return Locator{Kind: LocatorLiteral, Name: raw}
	}
}

// String renders the locator back to its wire form.
func (l Locator) String() string {
	switch l.Kind {
	case LocatorLiteral:
		return l.Name
	case LocatorAll:
		return tokenAll
	case LocatorMatching:
		return tokenMatching
	case LocatorEquivalent:
		return tokenEquivalent
	case LocatorCompatible:
		return tokenCompatible
	default:
		return ""
	}
}

// IsBlank reports whether the locator is unset.
func (l Locator) IsBlank() bool { return l.Kind == LocatorBlank }

// FieldMapping is one authored row of mapping intent. When
// ExcludeDestination is set the row carries no source data; it marks the
// destination locator as off-limits for wildcard rows.
type FieldMapping struct {
	SourceEvent      Locator
	SourceForm       Locator
	SourceField      Locator
	DestinationEvent Locator
	DestinationForm  Locator
	DestinationField Locator

	ExcludeDestination bool
}

// fieldMappingWire is the JSON shape of one row.
type fieldMappingWire struct {
	SourceEvent        string `json:"sourceEvent"`
	SourceForm         string `json:"sourceForm"`
	SourceField        string `json:"sourceField"`
	DestinationEvent   string `json:"destinationEvent"`
	DestinationForm    string `json:"destinationForm"`
	DestinationField   string `json:"destinationField"`
	ExcludeDestination bool   `json:"excludeDestination"`
}

// MarshalJSON renders the row in the wire format.
func (m FieldMapping) MarshalJSON() ([]byte, error) {
	return json.Marshal(fieldMappingWire{
		SourceEvent:        m.SourceEvent.String(),
		SourceForm:         m.SourceForm.String(),
		SourceField:        m.SourceField.String(),
		DestinationEvent:   m.DestinationEvent.String(),
		DestinationForm:    m.DestinationForm.String(),
		DestinationField:   m.DestinationField.String(),
		ExcludeDestination: m.ExcludeDestination,
	})
}

// UnmarshalJSON parses the wire format, classifying reserved tokens.
func (m *FieldMapping) UnmarshalJSON(data []byte) error {
	var w fieldMappingWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.SourceEvent = ParseLocator(w.SourceEvent)
	m.SourceForm = ParseLocator(w.SourceForm)
	m.SourceField = ParseLocator(w.SourceField)
	m.DestinationEvent = ParseLocator(w.DestinationEvent)
	m.DestinationForm = ParseLocator(w.DestinationForm)
	m.DestinationField = ParseLocator(w.DestinationField)
	m.ExcludeDestination = w.ExcludeDestination
	return nil
}

// FieldMap is an ordered sequence of mapping rows. Order is significant:
// resolution preserves authored order, and later rows override earlier
// ones when they claim the same destination target.
type FieldMap []FieldMapping

// ParseFieldMap decodes the JSON array wire format.
func ParseFieldMap(data []byte) (FieldMap, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var fm FieldMap
	if err := json.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("failed to parse field map: %w", err)
	}
	return fm, nil
}

// FieldPair is one concrete resolved mapping: copy Source's values into
// Destination for the given events.
type FieldPair struct {
	Source           *Variable
	Destination      *Variable
	SourceEvent      string // empty for classic projects
	DestinationEvent string
	Comparison       Comparison
}
