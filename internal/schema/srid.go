package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultSRID is WGS 84, the GeoJSON default.
const DefaultSRID = 4326

// ResolveSRID picks the SRID for the geometry column: an explicit override
// wins, then the CRS declared by the document, then DefaultSRID.
//
// Recognized CRS names: "EPSG:n", "urn:ogc:def:crs:EPSG::n",
// "http://www.opengis.net/def/crs/EPSG/0/n" and any CRS84 spelling.
func ResolveSRID(override int, crs string) (int, error) {
	if override > 0 {
		return override, nil
	}
	crs = strings.TrimSpace(crs)
	if crs == "" {
		return DefaultSRID, nil
	}
	upper := strings.ToUpper(crs)
	if strings.HasSuffix(upper, "CRS84") {
		return DefaultSRID, nil
	}
	if !strings.Contains(upper, "EPSG") {
		return 0, fmt.Errorf("schema: unsupported crs %q", crs)
	}
	i := strings.LastIndexAny(crs, ":/")
	code, err := strconv.Atoi(crs[i+1:])
	if err != nil || code <= 0 {
		return 0, fmt.Errorf("schema: unsupported crs %q", crs)
	}
	return code, nil
}
