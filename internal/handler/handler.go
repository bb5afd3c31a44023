package handler

import (
	"github.com/rshrestha/imagetools/internal/batch"
	"github.com/rshrestha/imagetools/internal/config"
	"github.com/rshrestha/imagetools/internal/database"
	"github.com/rshrestha/imagetools/internal/history"
	"github.com/rshrestha/imagetools/internal/ledger"
	"github.com/rshrestha/imagetools/internal/storage"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	DB      database.Database
	Store   storage.Storage
	Ledger  *ledger.Service
	History *history.Recorder
	Batch   *batch.Orchestrator
	Config  *config.Config
}
