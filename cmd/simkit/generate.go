// cmd/simkit/generate.go

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/hazmap/simkit/internal/config"
	"github.com/hazmap/simkit/internal/database"
	"github.com/hazmap/simkit/internal/fixture"
	"github.com/hazmap/simkit/internal/geo"
	"github.com/hazmap/simkit/internal/scenario"
	"github.com/hazmap/simkit/internal/util"
	"github.com/hazmap/simkit/pkg/core"
)

// runGenerate builds one seeded scenario and writes it to the fixture
// store (and catalog when the database is reachable) without starting
// the control server.
func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	name := fs.String("name", "", "fixture name (required)")
	seed := fs.Uint64("seed", 1, "deterministic seed")
	waypoints := fs.Int("waypoints", 3, "waypoint count")
	routes := fs.Int("routes", 2, "route count")
	buildings := fs.Int("buildings", 2, "building count")
	hazards := fs.Int("hazards", 1, "hazard zone count")
	origin := fs.String("origin", "", `region origin as "lng,lat" (optional)`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("generate requires -name")
	}

	b := scenario.NewBuilder(*seed)
	if *origin != "" {
		// Shell-quoted values keep their quotes on some platforms.
		pos, err := geo.Position3DFromString(util.TrimQuotes(*origin))
		if err != nil {
			return fmt.Errorf("parsing -origin: %w", err)
		}
		b.WithOrigin(core.LngLat{Lng: pos.X, Lat: pos.Y})
	}
	for i := 0; i < *waypoints; i++ {
		b.WithWaypoint(fmt.Sprintf("%s waypoint %d", *name, i+1))
	}
	for i := 0; i < *routes; i++ {
		b.WithRoute(fmt.Sprintf("%s route %d", *name, i+1), 6)
	}
	for i := 0; i < *buildings; i++ {
		b.WithBuilding(fmt.Sprintf("%s building %d", *name, i+1))
	}
	kinds := []core.HazardKind{core.HazardFlood, core.HazardWildfire, core.HazardChemical}
	for i := 0; i < *hazards; i++ {
		b.WithHazardZone(kinds[i%len(kinds)])
	}
	scn := b.Freeze()

	fixtureCfg := config.GetFixtureConfig()
	if _, err := os.Stat(fixtureCfg.Dir); os.IsNotExist(err) {
		os.MkdirAll(fixtureCfg.Dir, 0755)
	}
	store := fixture.NewStore(fixtureCfg)
	meta, err := store.WriteScenario(*name, scn)
	if err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}

	dbManager := database.NewManager(zerolog.New(os.Stderr).With().Timestamp().Logger())
	if err := dbManager.Connect(fixtureCfg.CatalogType, fixtureCfg.SqlitePath); err == nil {
		defer dbManager.Close()
		if catalog, cerr := fixture.NewCatalog(dbManager.DB); cerr == nil {
			if _, cerr = catalog.Save(*name, scn); cerr != nil {
				fmt.Fprintf(os.Stderr, "fixture written but not catalogued: %v\n", cerr)
			}
		}
	}

	fmt.Printf("wrote fixture %q seed=%d checksum=%s\n", meta.Name, meta.Seed, meta.Checksum)
	return nil
}
