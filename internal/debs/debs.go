package deps

import (
	"context"
	"log"

	"github.com/bwise1/sidewalk_atlas/config"
	"github.com/bwise1/sidewalk_atlas/internal/db"
	"github.com/bwise1/sidewalk_atlas/internal/http/overpass"
	"github.com/bwise1/sidewalk_atlas/internal/sidewalk"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Dependencies struct {
	DB       *db.DB
	Overpass *overpass.Client
	Store    sidewalk.Store
	Cache    *sidewalk.Cache
	Engine   *sidewalk.Engine
	Importer *sidewalk.Importer
}

func New(cfg *config.Config) *Dependencies {
	database, err := db.New(cfg.Dsn)
	if err != nil {
		log.Panicln("failed to connect to database", "error", err)
	}

	pgStore := sidewalk.NewPostgresStore(database.Pool())
	if err := pgStore.EnsureSchema(context.Background()); err != nil {
		log.Panicln("failed to ensure schema", "error", err)
	}

	cache := sidewalk.NewCache(pgStore, cfg.CacheTTL)

	// The match backend decides how snap candidates are retrieved:
	// "postgis" queries ST_DWithin per request, "memory" answers
	// from the cached in-process snapshot.
	var store sidewalk.Store = pgStore
	if cfg.MatchBackend == "memory" {
		store = sidewalk.NewCachedStore(pgStore, cache)
	}

	deps := Dependencies{
		DB:       database,
		Overpass: overpass.NewClient(cfg.OverpassURL, cfg.OverpassTimeout),
		Store:    store,
		Cache:    cache,
		Engine:   sidewalk.NewEngine(store, cache, cfg.SnapRadiusM, cfg.ValidateBufferM),
		Importer: sidewalk.NewImporter(store, cache, cfg.OffsetMeters),
	}
	return &deps
}

func (d *Dependencies) Pool() *pgxpool.Pool {
	return d.DB.Pool()
}
