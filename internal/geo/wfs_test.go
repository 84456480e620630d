package geo

import (
	"net/url"
	"testing"

	"github.com/cartoprint/api/internal/model"
)

func parseQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid URL %q: %v", raw, err)
	}
	return u.Query()
}

func TestGetFeatureURL(t *testing.T) {
	extent := Extent{5.5, 45.25, 10, 48}
	raw := GetFeatureURL("https://wfs.example.com/ows", "1.1.0", "ns:rivers", "EPSG:4326", extent, model.VectorFormatGeoJSON)
	q := parseQuery(t, raw)

	if q.Get("SERVICE") != "WFS" || q.Get("request") != "GetFeature" {
		t.Errorf("missing service markers in %q", raw)
	}
	if q.Get("version") != "1.1.0" {
		t.Errorf("version = %q, want 1.1.0", q.Get("version"))
	}
	if q.Get("typename") != "ns:rivers" {
		t.Errorf("typename = %q, want ns:rivers", q.Get("typename"))
	}
	if q.Get("typenames") != "" {
		t.Error("typenames must not be set before WFS 2.0.0")
	}
	if q.Get("srsName") != "EPSG:4326" {
		t.Errorf("srsName = %q", q.Get("srsName"))
	}
	if got, want := q.Get("bbox"), "5.5,45.25,10,48,EPSG:4326"; got != want {
		t.Errorf("bbox = %q, want %q", got, want)
	}
	if q.Get("outputFormat") != "application/json" {
		t.Errorf("outputFormat = %q, want application/json", q.Get("outputFormat"))
	}
}

func TestGetFeatureURLVersionSplit(t *testing.T) {
	extent := Extent{0, 0, 1, 1}

	for _, tc := range []struct {
		version string
		param   string
	}{
		{"1.0.0", "typename"},
		{"1.1.0", "typename"},
		{"", "typename"}, // defaults to 1.1.0
		{"2.0.0", "typenames"},
		{"2.0.2", "typenames"},
	} {
		raw := GetFeatureURL("http://host/wfs", tc.version, "roads", "EPSG:3857", extent, "")
		q := parseQuery(t, raw)
		if q.Get(tc.param) != "roads" {
			t.Errorf("version %q: %s = %q, want roads", tc.version, tc.param, q.Get(tc.param))
		}
		other := "typenames"
		if tc.param == "typenames" {
			other = "typename"
		}
		if q.Get(other) != "" {
			t.Errorf("version %q: both typename spellings set", tc.version)
		}
	}
}

func TestGetFeatureURLPassThrough(t *testing.T) {
	for _, base := range []string{"fixture://rivers", "testdata/rivers.json", "ftp://host/x"} {
		if got := GetFeatureURL(base, "1.1.0", "rivers", "EPSG:4326", Extent{0, 0, 1, 1}, ""); got != base {
			t.Errorf("non-HTTP base %q rewritten to %q", base, got)
		}
	}
}

func TestGetMapURL(t *testing.T) {
	extent := Extent{-100, -50, 100, 50}
	raw := GetMapURL("https://wms.example.com/service?foo=bar", "topo", "EPSG:3857", extent, 800, 400)
	q := parseQuery(t, raw)

	if q.Get("SERVICE") != "WMS" || q.Get("REQUEST") != "GetMap" || q.Get("VERSION") != "1.1.0" {
		t.Errorf("missing WMS markers in %q", raw)
	}
	if q.Get("LAYERS") != "topo" {
		t.Errorf("LAYERS = %q", q.Get("LAYERS"))
	}
	if got, want := q.Get("BBOX"), "-100,-50,100,50"; got != want {
		t.Errorf("BBOX = %q, want %q", got, want)
	}
	if q.Get("WIDTH") != "800" || q.Get("HEIGHT") != "400" {
		t.Errorf("size = %sx%s, want 800x400", q.Get("WIDTH"), q.Get("HEIGHT"))
	}
	if q.Get("TRANSPARENT") != "true" || q.Get("FORMAT") != "image/png" {
		t.Errorf("format params wrong in %q", raw)
	}
	// Pre-existing query parameters survive.
	if q.Get("foo") != "bar" {
		t.Error("existing query parameter dropped")
	}

	if got := GetMapURL("memory://blank", "l", "EPSG:3857", extent, 10, 10); got != "memory://blank" {
		t.Errorf("non-HTTP base rewritten to %q", got)
	}
}
