package geo

import (
	"net/url"
	"strconv"
	"strings"
)

// GetMapURL builds a WMS 1.1.0 GetMap request URL for an extent rendered at
// the given pixel size. Non-HTTP base URLs pass through unchanged, matching
// the WFS builder.
func GetMapURL(baseURL, layerName, srsName string, extent Extent, width, height int) string {
	lower := strings.ToLower(baseURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return baseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}

	q := u.Query()
	q.Set("SERVICE", "WMS")
	q.Set("VERSION", "1.1.0")
	q.Set("REQUEST", "GetMap")
	q.Set("LAYERS", layerName)
	q.Set("STYLES", "")
	q.Set("SRS", srsName)
	q.Set("BBOX", strings.Join([]string{
		formatCoord(extent[0]), formatCoord(extent[1]),
		formatCoord(extent[2]), formatCoord(extent[3]),
	}, ","))
	q.Set("WIDTH", strconv.Itoa(width))
	q.Set("HEIGHT", strconv.Itoa(height))
	q.Set("FORMAT", "image/png")
	q.Set("TRANSPARENT", "true")
	u.RawQuery = q.Encode()
	return u.String()
}
