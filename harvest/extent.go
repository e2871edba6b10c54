package harvest

import (
	"fmt"
	"strconv"
)

// PolygonExtent renders a rectangular GeoJSON Polygon covering the
// given bounding box, for the spatial extra.
func PolygonExtent(xmin, ymin, xmax, ymax float64) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return fmt.Sprintf(
		`{"type": "Polygon", "coordinates": [[[%s, %s], [%s, %s], [%s, %s], [%s, %s], [%s, %s]]]}`,
		f(xmin), f(ymin), f(xmax), f(ymin), f(xmax), f(ymax), f(xmin), f(ymax), f(xmin), f(ymin))
}

// PointExtent renders a GeoJSON Point. Used when a publisher declares
// a degenerate bounding box (same two corners); storing it as a
// zero-area polygon breaks spatial search.
func PointExtent(x, y float64) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return fmt.Sprintf(`{"type": "Point", "coordinates": [%s, %s]}`, f(x), f(y))
}
