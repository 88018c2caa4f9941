package core

import (
	"strconv"
	"time"
)

// FieldType is the declared type of a project field.
type FieldType string

// Field type constants, matching the host platform's metadata vocabulary.
const (
	FieldText        FieldType = "text"
	FieldNotes       FieldType = "notes"
	FieldRadio       FieldType = "radio"
	FieldDropdown    FieldType = "dropdown"
	FieldCheckbox    FieldType = "checkbox"
	FieldCalc        FieldType = "calc"
	FieldSlider      FieldType = "slider"
	FieldYesNo       FieldType = "yesno"
	FieldTrueFalse   FieldType = "truefalse"
	FieldFile        FieldType = "file"
	FieldDescriptive FieldType = "descriptive"
)

// IsChoice reports whether the field type carries an enumerated choice set
// rendered as a single selection. Radio and dropdown are interchangeable
// render styles over the same value domain.
func (t FieldType) IsChoice() bool {
	return t == FieldRadio || t == FieldDropdown
}

// ValidationKind is the text-field validation applied by the host platform.
type ValidationKind string

// Validation kinds. The date and datetime kinds differ only in display
// order (ymd/mdy/dmy); the underlying stored value is the same.
const (
	ValidationNone           ValidationKind = ""
	ValidationInteger        ValidationKind = "integer"
	ValidationNumber         ValidationKind = "number"
	ValidationDateYMD        ValidationKind = "date_ymd"
	ValidationDateMDY        ValidationKind = "date_mdy"
	ValidationDateDMY        ValidationKind = "date_dmy"
	ValidationDatetimeYMD    ValidationKind = "datetime_ymd"
	ValidationDatetimeMDY    ValidationKind = "datetime_mdy"
	ValidationDatetimeDMY    ValidationKind = "datetime_dmy"
	ValidationDatetimeSecYMD ValidationKind = "datetime_seconds_ymd"
	ValidationDatetimeSecMDY ValidationKind = "datetime_seconds_mdy"
	ValidationDatetimeSecDMY ValidationKind = "datetime_seconds_dmy"
	ValidationEmail          ValidationKind = "email"
	ValidationPhone          ValidationKind = "phone"
	ValidationZipcode        ValidationKind = "zipcode"
	ValidationTime           ValidationKind = "time"
)

// dateFamily groups the date-ish validation kinds by precision. Members of
// the same family are display variants of one value domain.
type dateFamily int

const (
	familyNone dateFamily = iota
	familyDate
	familyDatetime
	familyDatetimeSeconds
)

func (v ValidationKind) family() dateFamily {
	switch v {
	case ValidationDateYMD, ValidationDateMDY, ValidationDateDMY:
		return familyDate
	case ValidationDatetimeYMD, ValidationDatetimeMDY, ValidationDatetimeDMY:
		return familyDatetime
	case ValidationDatetimeSecYMD, ValidationDatetimeSecMDY, ValidationDatetimeSecDMY:
		return familyDatetimeSeconds
	default:
		return familyNone
	}
}

// IsNumeric reports whether the validation constrains values to numbers.
func (v ValidationKind) IsNumeric() bool {
	return v == ValidationInteger || v == ValidationNumber
}

// Choice is one code/label pair of an enumerated field.
type Choice struct {
	Code  string
	Label string
}

// Variable holds the metadata of a single project field. It is immutable
// once built from project metadata.
type Variable struct {
	Name   string
	Form   string
	Events []string // empty for classic (single-event) projects

	Type       FieldType
	Validation ValidationKind
	Min        string // raw bound from metadata, empty when absent
	Max        string
	Required   bool
	Choices    []Choice

	// IsIdentifier marks the project's record-identifier field. Identifier
	// fields are never copied by wildcard mapping rules.
	IsIdentifier bool
}

// Comparison is the result of comparing a source variable against a
// destination variable.
type Comparison int

// Comparison outcomes. Equal means the two fields are interchangeable;
// Compatible means every value valid at the source is valid at the
// destination; NotEqual means a source value may be rejected or mangled.
const (
	NotEqual Comparison = iota
	Compatible
	Equal
)

// String returns the comparison as a short label.
func (c Comparison) String() string {
	switch c {
	case Equal:
		return "equal"
	case Compatible:
		return "compatible"
	default:
		return "not equal"
	}
}

// Compare answers whether values of v may safely be copied into target.
// The relation is directional: v is the source, target the destination.
// Equal means identical constraints; Compatible means the destination's
// constraints are the same or looser on every axis.
func (v *Variable) Compare(target *Variable) Comparison {
	aspects := []Comparison{
		v.compareType(target),
		v.compareRequired(target),
	}

	if v.Type.IsChoice() && target.Type.IsChoice() {
		aspects = append(aspects, v.compareChoices(target))
	} else {
		aspects = append(aspects,
			v.compareValidation(target),
			v.compareBound(target, true),
			v.compareBound(target, false),
		)
	}

	result := Equal
	for _, a := range aspects {
		if a == NotEqual {
			return NotEqual
		}
		if a == Compatible {
			result = Compatible
		}
	}
	return result
}

// IsCompatibleWith reports whether Compare yields Equal or Compatible.
func (v *Variable) IsCompatibleWith(target *Variable) bool {
	return v.Compare(target) != NotEqual
}

// compareType checks the base field types. Radio and dropdown are mutually
// compatible render styles; everything else must match exactly.
func (v *Variable) compareType(target *Variable) Comparison {
	if v.Type == target.Type {
		return Equal
	}
	if v.Type.IsChoice() && target.Type.IsChoice() {
		return Compatible
	}
	return NotEqual
}

// compareRequired treats required->optional as a loosened constraint and
// optional->required as unsafe: the source may hold blank values the
// destination would reject.
func (v *Variable) compareRequired(target *Variable) Comparison {
	switch {
	case v.Required == target.Required:
		return Equal
	case v.Required && !target.Required:
		return Compatible
	default:
		return NotEqual
	}
}

// compareChoices compares enumerated choice-code sets. Copying into a
// superset is safe; into a subset or a mismatched set is not. Labels are
// display-only and do not participate.
func (v *Variable) compareChoices(target *Variable) Comparison {
	targetCodes := make(map[string]bool, len(target.Choices))
	for _, c := range target.Choices {
		targetCodes[c.Code] = true
	}

	for _, c := range v.Choices {
		if !targetCodes[c.Code] {
			return NotEqual
		}
	}
	if len(v.Choices) == len(target.Choices) {
		return Equal
	}
	return Compatible
}

// compareValidation compares text validation kinds. Integer widens into
// number; date/datetime kinds within one precision family differ only in
// display order.
func (v *Variable) compareValidation(target *Variable) Comparison {
	if v.Validation == target.Validation {
		return Equal
	}
	if v.Validation == ValidationInteger && target.Validation == ValidationNumber {
		return Compatible
	}
	if f := v.Validation.family(); f != familyNone && f == target.Validation.family() {
		return Compatible
	}
	return NotEqual
}

// compareBound compares one bound (min when lower is true, else max).
// An absent destination bound accepts anything; an absent source bound
// paired with a present destination bound is unsafe, since the source
// domain is guaranteed to extend past it.
func (v *Variable) compareBound(target *Variable, lower bool) Comparison {
	srcRaw, dstRaw := v.Max, target.Max
	if lower {
		srcRaw, dstRaw = v.Min, target.Min
	}

	if dstRaw == "" {
		if srcRaw == "" {
			return Equal
		}
		return Compatible
	}
	if srcRaw == "" {
		return NotEqual
	}

	src, okSrc := v.boundValue(srcRaw)
	dst, okDst := target.boundValue(dstRaw)
	if !okSrc || !okDst {
		// Unparseable bounds are only safe when textually identical.
		if srcRaw == dstRaw {
			return Equal
		}
		return NotEqual
	}

	switch {
	case src == dst:
		return Equal
	case lower && dst > src, !lower && dst < src:
		// Destination bound is tighter than the source's.
		return NotEqual
	default:
		return Compatible
	}
}

// boundValue normalizes a raw bound to a comparable number: a parsed float
// for numeric validations, seconds since epoch for date-family kinds.
func (v *Variable) boundValue(raw string) (float64, bool) {
	switch v.Validation.family() {
	case familyDate:
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return float64(t.Unix()), true
		}
		return 0, false
	case familyDatetime:
		if t, err := time.Parse("2006-01-02 15:04", raw); err == nil {
			return float64(t.Unix()), true
		}
		return 0, false
	case familyDatetimeSeconds:
		if t, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
			return float64(t.Unix()), true
		}
		return 0, false
	default:
		f, err := strconv.ParseFloat(raw, 64)
		return f, err == nil
	}
}
