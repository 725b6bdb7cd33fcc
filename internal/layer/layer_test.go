package layer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const parcels = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "local"}},
  "features": [
    {"type": "Feature", "id": "a", "properties": {"name": "well"},
     "geometry": {"type": "Point", "coordinates": [1, 2]}},
    {"type": "Feature", "properties": {"name": "fence"},
     "geometry": {"type": "LineString", "coordinates": [[0, 0], [3, 4]]}}
  ]
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestReadGeometries(t *testing.T) {
	fc, err := Read(writeFile(t, "parcels.geojson", parcels))
	require.NoError(t, err)

	geoms := Geometries(fc)
	require.Len(t, geoms, 2)
	assert.Equal(t, orb.Point{1, 2}, geoms[0])
	assert.Equal(t, orb.LineString{{0, 0}, {3, 4}}, geoms[1])
}

func TestReadInvalid(t *testing.T) {
	_, err := Read(writeFile(t, "bad.geojson", `{"type": "FeatureCollection", "features": [`))
	assert.Error(t, err)

	_, err = Read(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWithGeometriesCopiesAttributes(t *testing.T) {
	fc, err := Read(writeFile(t, "parcels.geojson", parcels))
	require.NoError(t, err)

	out, err := WithGeometries(fc, []orb.Geometry{orb.Point{10, 20}, orb.LineString{{5, 5}, {8, 9}}})
	require.NoError(t, err)
	require.Len(t, out.Features, 2)
	assert.Equal(t, "a", out.Features[0].ID)
	assert.Equal(t, "well", out.Features[0].Properties["name"])
	assert.NotContains(t, out.ExtraMembers, "crs")

	out.Features[0].Properties["name"] = "changed"
	assert.Equal(t, "well", fc.Features[0].Properties["name"])
	assert.Equal(t, orb.Point{1, 2}, fc.Features[0].Geometry)

	path := filepath.Join(t.TempDir(), "out.geojson")
	require.NoError(t, Write(path, out))
	back, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, orb.LineString{{5, 5}, {8, 9}}, back.Features[1].Geometry)
}

func TestWithGeometriesCountMismatch(t *testing.T) {
	fc, err := Read(writeFile(t, "parcels.geojson", parcels))
	require.NoError(t, err)
	_, err = WithGeometries(fc, nil)
	assert.Error(t, err)
}
