package core

import (
	"encoding/json"
	"fmt"
)

// DagRouteKind says what happens to records belonging to a source data
// access group.
type DagRouteKind string

// DAG routing outcomes.
const (
	// DagRouteMap assigns the record to a destination group.
	DagRouteMap DagRouteKind = "map"
	// DagRouteExclude drops the record from the transfer.
	DagRouteExclude DagRouteKind = "exclude"
	// DagRouteIgnore transfers the record but leaves the destination's
	// group assignment untouched.
	DagRouteIgnore DagRouteKind = "ignore"
)

// DagRoute is the routing decision for one source group.
type DagRoute struct {
	Kind        DagRouteKind `json:"kind"`
	Destination string       `json:"destination,omitempty"`
}

// DagMap routes source data access groups to destination groups. Records
// in a group with no entry are routed as DagRouteIgnore.
type DagMap map[string]DagRoute

// Route returns the routing decision for a source group.
func (d DagMap) Route(sourceDAG string) DagRoute {
	if r, ok := d[sourceDAG]; ok {
		return r
	}
	return DagRoute{Kind: DagRouteIgnore}
}

// Validate checks that mapped routes name a destination group and that
// kinds are known.
func (d DagMap) Validate() error {
	for src, r := range d {
		switch r.Kind {
		case DagRouteMap:
			if r.Destination == "" {
				return fmt.Errorf("dag map for group %q has no destination", src)
			}
		case DagRouteExclude, DagRouteIgnore:
		default:
			return fmt.Errorf("dag map for group %q has unknown kind %q", src, r.Kind)
		}
	}
	return nil
}

// ParseDagMap decodes the JSON object wire format.
func ParseDagMap(data []byte) (DagMap, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var d DagMap
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse dag map: %w", err)
	}
	return d, nil
}
