package routeopt

import "github.com/fieldserve/dispatch/core/model"

// Viewport is a map bounding box covering a set of stops.
type Viewport struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// FitViewport computes the bounding box over all stops that carry
// coordinates. Stops without coordinates are excluded from the fit (they
// still appear in the textual stop list). ok is false when no stop has a
// usable location.
func FitViewport(stops []model.RouteEntry) (Viewport, bool) {
	var vp Viewport
	found := false
	for _, s := range stops {
		if !s.HasCoordinates() {
			continue
		}
		lat, lng := *s.Latitude, *s.Longitude
		if !found {
			vp = Viewport{MinLat: lat, MaxLat: lat, MinLng: lng, MaxLng: lng}
			found = true
			continue
		}
		if lat < vp.MinLat {
			vp.MinLat = lat
		}
		if lat > vp.MaxLat {
			vp.MaxLat = lat
		}
		if lng < vp.MinLng {
			vp.MinLng = lng
		}
		if lng > vp.MaxLng {
			vp.MaxLng = lng
		}
	}
	return vp, found
}
