// Package resolve expands a declarative field map into concrete
// source/destination variable pairs against two project schemas.
package resolve

import (
	"fmt"
	"log/slog"

	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// Resolved is the outcome of resolving a whole field map. Pairs holds the
// concrete copies to perform; Status carries every row-level diagnostic.
type Resolved struct {
	Pairs  []core.FieldPair
	Status *core.MappingStatus
}

// SourceFields returns the distinct source field names of all pairs, in
// first-resolved order. The transferer pulls exactly these from the
// source project.
func (r *Resolved) SourceFields() []string {
	var names []string
	seen := make(map[string]bool)
	for _, p := range r.Pairs {
		if !seen[p.Source.Name] {
			seen[p.Source.Name] = true
			names = append(names, p.Source.Name)
		}
	}
	return names
}

// Resolver resolves field maps against a fixed pair of schemas.
type Resolver struct {
	source *core.Schema
	dest   *core.Schema
	logger *slog.Logger
}

// New creates a resolver for the given schemas. If logger is nil, a
// discard logger is used.
func New(source, dest *core.Schema, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{source: source, dest: dest, logger: logger}
}

// pairKey identifies a resolved destination target for override and
// exclusion bookkeeping.
type pairKey struct {
	event string
	field string
}

// Resolve expands every row of the field map in authored order. Row-level
// failures are recorded on the returned status and do not stop resolution
// of other rows. Later rows override earlier rows that resolved to the
// same destination target; explicit rows override wildcard expansions
// regardless of order.
func (r *Resolver) Resolve(fm core.FieldMap) *Resolved {
	status := core.NewMappingStatus()

	// Exclusion rows claim destination fields up front so that wildcard
	// rows, wherever they appear, skip them.
	excluded := r.collectExclusions(fm, status)

	var pairs []core.FieldPair
	byTarget := make(map[pairKey]int)  // destination target -> index in pairs
	explicit := make(map[pairKey]bool) // target was claimed by an explicit row

	for i, row := range fm {
		if row.ExcludeDestination {
			continue
		}
		rowPairs := r.resolveRow(i, row, status)
		isExplicit := row.DestinationField.Kind == core.LocatorLiteral

		for _, p := range rowPairs {
			key := pairKey{event: p.DestinationEvent, field: p.Destination.Name}
			if !isExplicit && excluded[key.field] {
				continue
			}
			if idx, ok := byTarget[key]; ok {
				// Explicit rows always win over wildcard expansions.
				if explicit[key] && !isExplicit {
					continue
				}
				pairs[idx] = p
				explicit[key] = explicit[key] || isExplicit
				continue
			}
			byTarget[key] = len(pairs)
			explicit[key] = isExplicit
			pairs = append(pairs, p)
		}
	}

	r.logger.Debug("field map resolved",
		"rows", len(fm), "pairs", len(pairs), "severity", status.Severity().String())

	return &Resolved{Pairs: pairs, Status: status}
}

// CheckRow validates one row in isolation, for the interactive status
// check.
func (r *Resolver) CheckRow(row core.FieldMapping) *core.MappingStatus {
	status := core.NewMappingStatus()
	if row.ExcludeDestination {
		r.resolveExclusion(0, row, status)
		return status
	}
	r.resolveRow(0, row, status)
	return status
}

// collectExclusions resolves every exclusion row to the set of destination
// field names it claims.
func (r *Resolver) collectExclusions(fm core.FieldMap, status *core.MappingStatus) map[string]bool {
	excluded := make(map[string]bool)
	for i, row := range fm {
		if !row.ExcludeDestination {
			continue
		}
		for _, name := range r.resolveExclusion(i, row, status) {
			excluded[name] = true
		}
	}
	return excluded
}

// resolveExclusion returns the destination field names claimed by one
// exclusion row: a single literal field, or every field of the named form.
func (r *Resolver) resolveExclusion(i int, row core.FieldMapping, status *core.MappingStatus) []string {
	switch row.DestinationField.Kind {
	case core.LocatorLiteral:
		name := row.DestinationField.Name
		if r.dest.Field(name) == nil {
			status.AddError(fmt.Sprintf("row %d: excluded destination field %q not found", i+1, name))
			return nil
		}
		return []string{name}
	case core.LocatorBlank, core.LocatorAll:
		if row.DestinationForm.Kind != core.LocatorLiteral {
			status.AddIncomplete(fmt.Sprintf("row %d: exclusion names neither a destination field nor a form", i+1))
			return nil
		}
		form := row.DestinationForm.Name
		if !r.dest.HasForm(form) {
			status.AddError(fmt.Sprintf("row %d: excluded destination form %q not found", i+1, form))
			return nil
		}
		var names []string
		for _, v := range r.dest.FieldsForForm(form) {
			names = append(names, v.Name)
		}
		return names
	default:
		status.AddError(fmt.Sprintf("row %d: token %s is not valid on an exclusion row", i+1, row.DestinationField))
		return nil
	}
}

// resolveRow expands one data-carrying row into field pairs.
func (r *Resolver) resolveRow(i int, row core.FieldMapping, status *core.MappingStatus) []core.FieldPair {
	srcEvents, ok := r.sourceEvents(i, row, status)
	if !ok {
		return nil
	}

	var pairs []core.FieldPair
	for _, srcEvent := range srcEvents {
		destEvent, ok := r.destinationEvent(i, row, srcEvent, status)
		if !ok {
			continue
		}
		srcVars, ok := r.sourceFields(i, row, srcEvent, status)
		if !ok {
			continue
		}
		for _, sv := range srcVars {
			dv, cmp, ok := r.destinationField(i, row, sv, status)
			if !ok {
				continue
			}
			pairs = append(pairs, core.FieldPair{
				Source:           sv,
				Destination:      dv,
				SourceEvent:      srcEvent,
				DestinationEvent: destEvent,
				Comparison:       cmp,
			})
		}
	}
	return pairs
}

// sourceEvents expands the source event locator. Classic projects have a
// single unnamed event.
func (r *Resolver) sourceEvents(i int, row core.FieldMapping, status *core.MappingStatus) ([]string, bool) {
	if !r.source.Longitudinal() {
		return []string{""}, true
	}
	switch row.SourceEvent.Kind {
	case core.LocatorLiteral:
		if !r.source.HasEvent(row.SourceEvent.Name) {
			status.AddError(fmt.Sprintf("row %d: source event %q not found", i+1, row.SourceEvent.Name))
			return nil, false
		}
		return []string{row.SourceEvent.Name}, true
	case core.LocatorBlank, core.LocatorAll:
		return r.source.Events(), true
	default:
		status.AddError(fmt.Sprintf("row %d: token %s is not valid as a source event", i+1, row.SourceEvent))
		return nil, false
	}
}

// destinationEvent resolves the destination event for one expanded source
// event. MATCHING reuses the source event name and requires the source
// side to be a single concrete value.
func (r *Resolver) destinationEvent(i int, row core.FieldMapping, srcEvent string, status *core.MappingStatus) (string, bool) {
	if !r.dest.Longitudinal() {
		return "", true
	}
	switch row.DestinationEvent.Kind {
	case core.LocatorLiteral:
		if !r.dest.HasEvent(row.DestinationEvent.Name) {
			status.AddError(fmt.Sprintf("row %d: destination event %q not found", i+1, row.DestinationEvent.Name))
			return "", false
		}
		return row.DestinationEvent.Name, true
	case core.LocatorMatching:
		if row.SourceEvent.Kind != core.LocatorLiteral && r.source.Longitudinal() {
			status.AddError(fmt.Sprintf("row %d: destination event MATCHING is ambiguous when the source event is not a single value", i+1))
			return "", false
		}
		if !r.dest.HasEvent(srcEvent) {
			status.AddError(fmt.Sprintf("row %d: destination has no event %q to match", i+1, srcEvent))
			return "", false
		}
		return srcEvent, true
	case core.LocatorBlank:
		if len(r.dest.Events()) == 1 {
			return r.dest.Events()[0], true
		}
		status.AddIncomplete(fmt.Sprintf("row %d: destination event left blank", i+1))
		return "", false
	default:
		status.AddError(fmt.Sprintf("row %d: token %s is not valid as a destination event", i+1, row.DestinationEvent))
		return "", false
	}
}

// sourceFields computes the candidate source variables for one expanded
// event. An explicit field pins the form; an explicit form pins the
// event-derived candidate set; absence of both falls back to all forms of
// the event, then all forms of the project.
func (r *Resolver) sourceFields(i int, row core.FieldMapping, srcEvent string, status *core.MappingStatus) ([]*core.Variable, bool) {
	switch row.SourceField.Kind {
	case core.LocatorLiteral:
		v := r.source.Field(row.SourceField.Name)
		if v == nil {
			status.AddError(fmt.Sprintf("row %d: source field %q not found", i+1, row.SourceField.Name))
			return nil, false
		}
		if row.SourceForm.Kind == core.LocatorLiteral && v.Form != row.SourceForm.Name {
			status.AddError(fmt.Sprintf("row %d: source field %q is not on form %q", i+1, v.Name, row.SourceForm.Name))
			return nil, false
		}
		return []*core.Variable{v}, true

	case core.LocatorAll:
		forms, ok := r.sourceForms(i, row, srcEvent, status)
		if !ok {
			return nil, false
		}
		var vars []*core.Variable
		for _, form := range forms {
			for _, v := range r.source.FieldsForForm(form) {
				// Record identifiers move via record matching, never via
				// field copy.
				if v.IsIdentifier {
					continue
				}
				vars = append(vars, v)
			}
		}
		return vars, true

	case core.LocatorBlank:
		status.AddIncomplete(fmt.Sprintf("row %d: source field left blank", i+1))
		return nil, false

	default:
		status.AddError(fmt.Sprintf("row %d: token %s is not valid as a source field", i+1, row.SourceField))
		return nil, false
	}
}

// sourceForms computes the candidate form set for an ALL source field.
func (r *Resolver) sourceForms(i int, row core.FieldMapping, srcEvent string, status *core.MappingStatus) ([]string, bool) {
	switch row.SourceForm.Kind {
	case core.LocatorLiteral:
		if !r.source.HasForm(row.SourceForm.Name) {
			status.AddError(fmt.Sprintf("row %d: source form %q not found", i+1, row.SourceForm.Name))
			return nil, false
		}
		return []string{row.SourceForm.Name}, true
	case core.LocatorBlank, core.LocatorAll:
		if r.source.Longitudinal() && srcEvent != "" {
			return r.source.FormsForEvent(srcEvent), true
		}
		return r.source.Forms(), true
	default:
		status.AddError(fmt.Sprintf("row %d: token %s is not valid as a source form", i+1, row.SourceForm))
		return nil, false
	}
}

// destinationField resolves the destination variable for one source
// variable, applying the EQUIVALENT and COMPATIBLE token semantics.
func (r *Resolver) destinationField(i int, row core.FieldMapping, sv *core.Variable, status *core.MappingStatus) (*core.Variable, core.Comparison, bool) {
	var dv *core.Variable

	switch row.DestinationField.Kind {
	case core.LocatorLiteral:
		dv = r.dest.Field(row.DestinationField.Name)
		if dv == nil {
			status.AddError(fmt.Sprintf("row %d: destination field %q not found", i+1, row.DestinationField.Name))
			return nil, core.NotEqual, false
		}

	case core.LocatorEquivalent:
		dv = r.dest.Field(sv.Name)
		if dv == nil {
			status.AddError(fmt.Sprintf("row %d: destination has no field named %q", i+1, sv.Name))
			return nil, core.NotEqual, false
		}

	case core.LocatorCompatible:
		dv = r.dest.Field(sv.Name)
		if dv == nil {
			status.AddIncomplete(fmt.Sprintf("row %d: destination has no field named %q", i+1, sv.Name))
			return nil, core.NotEqual, false
		}
		if cmp := sv.Compare(dv); cmp == core.NotEqual {
			status.AddError(fmt.Sprintf("row %d: source field %q is not compatible with destination field %q", i+1, sv.Name, dv.Name))
			return nil, core.NotEqual, false
		}

	case core.LocatorBlank:
		status.AddIncomplete(fmt.Sprintf("row %d: destination field left blank", i+1))
		return nil, core.NotEqual, false

	default:
		status.AddError(fmt.Sprintf("row %d: token %s is not valid as a destination field", i+1, row.DestinationField))
		return nil, core.NotEqual, false
	}

	if dv.IsIdentifier {
		status.AddError(fmt.Sprintf("row %d: destination field %q is the record identifier", i+1, dv.Name))
		return nil, core.NotEqual, false
	}

	if ok := r.checkDestinationForm(i, row, sv, dv, status); !ok {
		return nil, core.NotEqual, false
	}

	return dv, sv.Compare(dv), true
}

// checkDestinationForm enforces an explicit or MATCHING destination form
// constraint against the resolved field.
func (r *Resolver) checkDestinationForm(i int, row core.FieldMapping, sv, dv *core.Variable, status *core.MappingStatus) bool {
	switch row.DestinationForm.Kind {
	case core.LocatorLiteral:
		if dv.Form != row.DestinationForm.Name {
			status.AddError(fmt.Sprintf("row %d: destination field %q is not on form %q", i+1, dv.Name, row.DestinationForm.Name))
			return false
		}
	case core.LocatorMatching:
		if row.SourceForm.Kind == core.LocatorAll {
			status.AddError(fmt.Sprintf("row %d: destination form MATCHING is ambiguous when the source form is ALL", i+1))
			return false
		}
		if dv.Form != sv.Form {
			status.AddError(fmt.Sprintf("row %d: destination field %q is on form %q, not the matching form %q", i+1, dv.Name, dv.Form, sv.Form))
			return false
		}
	case core.LocatorBlank, core.LocatorAll:
		// No constraint.
	default:
		status.AddError(fmt.Sprintf("row %d: token %s is not valid as a destination form", i+1, row.DestinationForm))
		return false
	}
	return true
}
