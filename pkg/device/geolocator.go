package device

import (
	"context"

	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// StaticGeolocator reports a fixed position given by the user
type StaticGeolocator struct {
	coord *model.Coordinates
}

// NewStaticGeolocator creates a geolocator. A nil coord means no position is available.
func NewStaticGeolocator(coord *model.Coordinates) *StaticGeolocator {
	return &StaticGeolocator{coord: coord}
}

func (g *StaticGeolocator) Locate(ctx context.Context) (model.Coordinates, error) {
	if g.coord == nil {
		return model.Coordinates{}, model.Device(model.CodeGeolocationUnsupported, nil, "no position available")
	}

	c := *g.coord
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return model.Coordinates{}, model.Device(model.CodeLocationFetchFailed, nil, "position out of range",
			goerr.V("latitude", c.Latitude), goerr.V("longitude", c.Longitude))
	}
	return c, nil
}
