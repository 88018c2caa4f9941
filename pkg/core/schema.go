package core

// Schema is the field dictionary of one project: an ordered collection of
// Variables indexed by name, form, and event. It is built once from project
// metadata and is read-only during a transfer.
type Schema struct {
	longitudinal bool
	ordered      []*Variable
	byName       map[string]*Variable
	byForm       map[string][]*Variable
	byEvent      map[string][]*Variable
	forms        []string
	events       []string
}

// NewSchema builds a Schema from ordered field metadata. The first variable
// is treated as the record-identifier field, per the host platform's
// convention, unless one is already flagged.
func NewSchema(vars []*Variable, longitudinal bool) *Schema {
	s := &Schema{
		longitudinal: longitudinal,
		byName:       make(map[string]*Variable, len(vars)),
		byForm:       make(map[string][]*Variable),
		byEvent:      make(map[string][]*Variable),
	}

	flagged := false
	for _, v := range vars {
		if v.IsIdentifier {
			flagged = true
			break
		}
	}
	if !flagged && len(vars) > 0 {
		vars[0].IsIdentifier = true
	}

	seenForm := make(map[string]bool)
	seenEvent := make(map[string]bool)
	for _, v := range vars {
		if _, dup := s.byName[v.Name]; dup {
			continue
		}
		s.ordered = append(s.ordered, v)
		s.byName[v.Name] = v

		if !seenForm[v.Form] {
			seenForm[v.Form] = true
			s.forms = append(s.forms, v.Form)
		}
		s.byForm[v.Form] = append(s.byForm[v.Form], v)

		for _, ev := range v.Events {
			if !seenEvent[ev] {
				seenEvent[ev] = true
				s.events = append(s.events, ev)
			}
			s.byEvent[ev] = append(s.byEvent[ev], v)
		}
	}

	return s
}

// Longitudinal reports whether the project has multiple events.
func (s *Schema) Longitudinal() bool {
	return s.longitudinal
}

// Field looks up a variable by name. Returns nil when absent.
func (s *Schema) Field(name string) *Variable {
	return s.byName[name]
}

// Fields returns all variables in metadata order.
func (s *Schema) Fields() []*Variable {
	return s.ordered
}

// FieldsForForm returns the variables of one form, in metadata order.
func (s *Schema) FieldsForForm(form string) []*Variable {
	return s.byForm[form]
}

// FieldsForEvent returns the variables in scope for one event.
func (s *Schema) FieldsForEvent(event string) []*Variable {
	return s.byEvent[event]
}

// Forms returns form names in first-seen order.
func (s *Schema) Forms() []string {
	return s.forms
}

// HasForm reports whether the schema contains the named form.
func (s *Schema) HasForm(form string) bool {
	return len(s.byForm[form]) > 0
}

// Events returns event names in first-seen order. Empty for classic
// projects.
func (s *Schema) Events() []string {
	return s.events
}

// HasEvent reports whether the schema contains the named event.
func (s *Schema) HasEvent(event string) bool {
	return len(s.byEvent[event]) > 0
}

// RecordIDField returns the record-identifier variable, or nil for an
// empty schema.
func (s *Schema) RecordIDField() *Variable {
	for _, v := range s.ordered {
		if v.IsIdentifier {
			return v
		}
	}
	return nil
}

// FormsForEvent returns the forms that have at least one field in scope
// for the event, in metadata order.
func (s *Schema) FormsForEvent(event string) []string {
	var forms []string
	seen := make(map[string]bool)
	for _, v := range s.byEvent[event] {
		if !seen[v.Form] {
			seen[v.Form] = true
			forms = append(forms, v.Form)
		}
	}
	return forms
}
