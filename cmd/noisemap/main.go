package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"github.com/rvasin/noisemap"
	"github.com/rvasin/noisemap/tiledbstore"
)

// runFixtureBatch drives run_batch against a pair of local GeoJSON
// fixture files instead of a live fetch collaborator, a smoke-test path
// useful for exercising the kernel without a database.
func runFixtureBatch(ctx context.Context, roadsURI, buildingsURI, storeURI, storeConfigURI string, maxRoads int) error {
	source, err := noisemap.LoadMemoryDataSource(roadsURI, buildingsURI)
	if err != nil {
		return errors.Join(err, errors.New("loading in-memory road/building fixtures"))
	}

	cfg := noisemap.NewConfig()

	if storeURI == "" {
		persistence := noisemap.NewMemoryPersistence()

		log.Println("Processing batch:", roadsURI, buildingsURI)
		if err := noisemap.RunBatch(ctx, cfg, source, persistence, maxRoads); err != nil {
			return err
		}
		log.Printf("wrote %d noise lines, %d impacted walls, %d roads processed",
			len(persistence.NoiseLines), len(persistence.ImpactedWalls), len(persistence.ProcessedRoads))
		return nil
	}

	store, err := tiledbstore.Open(storeURI, storeConfigURI)
	if err != nil {
		return errors.Join(err, errors.New("opening tiledb persistence store"))
	}
	defer store.Close()

	log.Println("Processing batch:", roadsURI, buildingsURI)
	if err := noisemap.RunBatch(ctx, cfg, source, store, maxRoads); err != nil {
		return err
	}
	log.Println("Finished batch:", roadsURI, buildingsURI)

	return nil
}

func main() {
	app := &cli.App{
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "compute a noise exposure map for up to max-roads roads",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "roads-uri",
						Usage: "Pathname to a GeoJSON FeatureCollection of road LineStrings.",
					},
					&cli.StringFlag{
						Name:  "buildings-uri",
						Usage: "Pathname to a GeoJSON FeatureCollection of building Polygons.",
					},
					&cli.StringFlag{
						Name:  "store-uri",
						Usage: "URI or pathname of a TileDB persistence root group. Empty keeps results in memory only.",
					},
					&cli.StringFlag{
						Name:  "store-config-uri",
						Usage: "URI or pathname to a TileDB config file for --store-uri.",
					},
					&cli.IntFlag{
						Name:  "max-roads",
						Usage: "Maximum number of roads to process in this batch.",
						Value: 1,
					},
				},
				Action: func(cCtx *cli.Context) error {
					// Cancelled on Ctrl+C; the orchestrator only checks
					// this between roads, so an interrupt mid-road simply
					// means that road is re-run next time.
					ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
					defer stop()

					return runFixtureBatch(
						ctx,
						cCtx.String("roads-uri"),
						cCtx.String("buildings-uri"),
						cCtx.String("store-uri"),
						cCtx.String("store-config-uri"),
						cCtx.Int("max-roads"),
					)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
