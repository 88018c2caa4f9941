package core

import "testing"

func TestDagMap_Route(t *testing.T) {
	d := DagMap{
		"site_a": {Kind: DagRouteMap, Destination: "center_1"},
		"site_b": {Kind: DagRouteExclude},
	}

	if got := d.Route("site_a"); got.Kind != DagRouteMap || got.Destination != "center_1" {
		t.Errorf("Route(site_a) = %+v", got)
	}
	if got := d.Route("site_b"); got.Kind != DagRouteExclude {
		t.Errorf("Route(site_b) = %+v", got)
	}
	// Unlisted groups transfer with the destination assignment untouched.
	if got := d.Route("site_c"); got.Kind != DagRouteIgnore {
		t.Errorf("Route(site_c) = %+v", got)
	}
	if got := d.Route(""); got.Kind != DagRouteIgnore {
		t.Errorf("Route(no group) = %+v", got)
	}
}

func TestDagMap_Validate(t *testing.T) {
	valid := DagMap{
		"a": {Kind: DagRouteMap, Destination: "x"},
		"b": {Kind: DagRouteExclude},
		"c": {Kind: DagRouteIgnore},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	if err := (DagMap{"a": {Kind: DagRouteMap}}).Validate(); err == nil {
		t.Error("mapped route without destination should fail")
	}
	if err := (DagMap{"a": {Kind: "reroute"}}).Validate(); err == nil {
		t.Error("unknown kind should fail")
	}
}

func TestParseDagMap(t *testing.T) {
	d, err := ParseDagMap([]byte(`{"site_a":{"kind":"map","destination":"center_1"},"site_b":{"kind":"exclude"}}`))
	if err != nil {
		t.Fatalf("ParseDagMap: %v", err)
	}
	if len(d) != 2 {
		t.Fatalf("parsed %d routes, want 2", len(d))
	}
	if d["site_a"].Destination != "center_1" {
		t.Errorf("site_a = %+v", d["site_a"])
	}

	empty, err := ParseDagMap(nil)
	if err != nil || empty != nil {
		t.Errorf("ParseDagMap(nil) = %v, %v", empty, err)
	}
}
