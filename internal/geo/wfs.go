package geo

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cartoprint/api/internal/model"
)

// DefaultWFSVersion is used when a vector layer does not pin one.
const DefaultWFSVersion = "1.1.0"

// GetFeatureURL builds a WFS GetFeature request URL for the features
// intersecting an extent. WFS 2.0.0 renamed the typename parameter to
// typenames; both spellings are produced depending on the version.
// Non-HTTP base URLs pass through unchanged so local fixtures can stand in
// for a WFS endpoint.
func GetFeatureURL(baseURL, version, typeName, srsName string, extent Extent, format model.VectorFormat) string {
	lower := strings.ToLower(baseURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return baseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	if version == "" {
		version = DefaultWFSVersion
	}

	q := u.Query()
	q.Set("SERVICE", "WFS")
	q.Set("version", version)
	q.Set("request", "GetFeature")
	if versionAtLeast(version, 2, 0, 0) {
		q.Set("typenames", typeName)
	} else {
		q.Set("typename", typeName)
	}
	q.Set("srsName", srsName)
	q.Set("bbox", fmt.Sprintf("%s,%s,%s,%s,%s",
		formatCoord(extent[0]), formatCoord(extent[1]),
		formatCoord(extent[2]), formatCoord(extent[3]), srsName))
	if format == model.VectorFormatGeoJSON {
		q.Set("outputFormat", "application/json")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// versionAtLeast compares a dotted version string against major.minor.patch.
func versionAtLeast(version string, major, minor, patch int) bool {
	want := [3]int{major, minor, patch}
	parts := strings.Split(version, ".")
	for i := 0; i < 3; i++ {
		got := 0
		if i < len(parts) {
			got, _ = strconv.Atoi(parts[i])
		}
		if got != want[i] {
			return got > want[i]
		}
	}
	return true
}
