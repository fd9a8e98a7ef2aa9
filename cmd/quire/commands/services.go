package commands

import (
	"database/sql"
	"fmt"

	"github.com/teranos/quire/config"
	"github.com/teranos/quire/db"
	"github.com/teranos/quire/engine"
	"github.com/teranos/quire/logger"
	"github.com/teranos/quire/split"
	"github.com/teranos/quire/store"
	"github.com/teranos/quire/xref"
)

// services bundles the core collaborators every command wires the same way
type services struct {
	cfg      *config.Config
	db       *sql.DB
	store    *store.Store
	index    *xref.Index
	splitter *split.Splitter
	state    *engine.StateStore
}

// openServices loads configuration, opens the database, applies migrations
// and constructs the core components
func openServices() (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := store.NewStore(database)
	ix := xref.NewIndex(database)
	return &services{
		cfg:      cfg,
		db:       database,
		store:    s,
		index:    ix,
		splitter: split.NewSplitter(s, ix, database, cfg.Split),
		state:    engine.NewStateStore(database),
	}, nil
}

func (s *services) Close() {
	s.db.Close()
}

// lockPath derives the cross-process run lock location from the database
// path. In-memory databases run unlocked.
func (s *services) lockPath() string {
	if s.cfg.Database.Path == "" || s.cfg.Database.Path == ":memory:" {
		return ""
	}
	return s.cfg.Database.Path + ".lock"
}
