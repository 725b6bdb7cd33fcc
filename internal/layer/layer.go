// Package layer reads and writes vector layers as GeoJSON feature collections.
package layer

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Read loads a GeoJSON FeatureCollection from path.
func Read(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// Write saves the collection to path.
func Write(path string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Geometries returns the geometry of each feature in order.
func Geometries(fc *geojson.FeatureCollection) []orb.Geometry {
	out := make([]orb.Geometry, len(fc.Features))
	for i, f := range fc.Features {
		out[i] = f.Geometry
	}
	return out
}

// WithGeometries returns a new collection whose features carry the given
// geometries and copies of the original IDs and properties. Bounding boxes
// are dropped because they no longer describe the geometry.
func WithGeometries(fc *geojson.FeatureCollection, geoms []orb.Geometry) (*geojson.FeatureCollection, error) {
	if len(geoms) != len(fc.Features) {
		return nil, fmt.Errorf("geometry count mismatch: %d features, %d geometries", len(fc.Features), len(geoms))
	}

	out := geojson.NewFeatureCollection()
	for k, v := range fc.ExtraMembers {
		if k == "crs" {
			// the output frame is the target frame, not the source one
			continue
		}
		if out.ExtraMembers == nil {
			out.ExtraMembers = geojson.Properties{}
		}
		out.ExtraMembers[k] = v
	}
	for i, f := range fc.Features {
		nf := geojson.NewFeature(geoms[i])
		nf.ID = f.ID
		nf.Properties = f.Properties.Clone()
		out.Append(nf)
	}
	return out, nil
}
