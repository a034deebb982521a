// internal/fixture/catalog_test.go
package fixture

import (
	"reflect"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hazmap/simkit/internal/scenario"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cat, err := NewCatalog(db)
	require.NoError(t, err)
	return cat
}

func TestSaveAndGetRoundTrips(t *testing.T) {
	cat := testCatalog(t)
	scn := scenario.MultiHazard()

	meta, err := cat.Save("multi-hazard", scn)
	require.NoError(t, err)
	assert.Equal(t, scn.Seed, meta.Seed)

	got, gotMeta, err := cat.Get("multi-hazard")
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(scn, got))
	assert.Equal(t, meta.Checksum, gotMeta.Checksum)
}

func TestSaveUpsertsByName(t *testing.T) {
	cat := testCatalog(t)

	first, err := cat.Save("scn", scenario.NewBuilder(1).WithWaypoint("a").Freeze())
	require.NoError(t, err)
	second, err := cat.Save("scn", scenario.NewBuilder(2).WithWaypoint("b").Freeze())
	require.NoError(t, err)
	assert.NotEqual(t, first.Checksum, second.Checksum)

	got, meta, err := cat.Get("scn")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Seed)
	assert.Equal(t, second.Checksum, meta.Checksum)

	list, err := cat.List()
	require.NoError(t, err)
	assert.Len(t, list, 1, "upsert must not create a second row")
}

func TestGetMissingFixtureFails(t *testing.T) {
	cat := testCatalog(t)
	_, _, err := cat.Get("ghost")
	require.Error(t, err)
}

func TestListAndDelete(t *testing.T) {
	cat := testCatalog(t)

	_, err := cat.Save("a", scenario.Minimal())
	require.NoError(t, err)
	_, err = cat.Save("b", scenario.MultiHazard())
	require.NoError(t, err)

	list, err := cat.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, cat.Delete("a"))
	require.Error(t, cat.Delete("a"), "deleting twice should fail")

	list, err = cat.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Name)
}
