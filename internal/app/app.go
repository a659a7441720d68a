// Package app wires the capture pipeline from configuration. It is shared by
// the CLI and the MCP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/dictate-go/internal/builder"
	"github.com/raphaelgruber/dictate-go/internal/config"
	"github.com/raphaelgruber/dictate-go/internal/db"
	"github.com/raphaelgruber/dictate-go/internal/llm"
	"github.com/raphaelgruber/dictate-go/internal/matcher"
	"github.com/raphaelgruber/dictate-go/internal/metrics"
	"github.com/raphaelgruber/dictate-go/internal/models"
	"github.com/raphaelgruber/dictate-go/internal/schema"
	"github.com/raphaelgruber/dictate-go/internal/service"
	"github.com/raphaelgruber/dictate-go/internal/tools"
	"github.com/raphaelgruber/dictate-go/internal/workspace"
)

// App holds every wired component.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *schema.Registry
	Store    workspace.Store
	Metrics  *metrics.Collector
	Gateway  *llm.Gateway
	Matcher  *matcher.Matcher
	Pipeline *service.Pipeline
	// History is nil unless auditing is enabled.
	History *db.History
	// Surreal is set when the workspace lives in SurrealDB.
	Surreal *db.WorkspaceStore

	db *db.Client
}

// LoadRegistry reads the schema file named in cfg, or the built-in schema.
func LoadRegistry(cfg config.Config) (*schema.Registry, error) {
	if cfg.SchemaFile != "" {
		return schema.LoadFile(cfg.SchemaFile)
	}
	return schema.Default()
}

// New validates cfg and wires the pipeline. The returned App must be closed.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewWithModel(ctx, cfg, logger, nil)
}

// NewWithModel wires the pipeline around model. A nil model is created from
// cfg.
func NewWithModel(ctx context.Context, cfg config.Config, logger *slog.Logger, model *llm.Model) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg, err := LoadRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := checkWordlePlayers(reg, cfg); err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  metrics.NewCollector(),
	}

	if cfg.NeedsSurreal() {
		client, err := db.NewClient(ctx, db.ConfigFrom(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = client
		if err := client.InitSchema(ctx); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
		if cfg.Audit {
			a.History = db.NewHistory(client)
		}
	}

	store, err := a.openStore()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Store = workspace.Instrument(store, a.Metrics)

	if model == nil {
		model, err = llm.NewModel(ctx, cfg, a.Metrics)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("init model: %w", err)
		}
	}
	logger.Debug("model initialized", "provider", cfg.LLMProvider, "model", model.Model())

	a.Gateway = llm.NewGateway(model, llm.Options{
		Location:            cfg.Location,
		SelfName:            cfg.SelfName,
		Opponent:            cfg.Opponent,
		RecommendationTypes: cfg.RecommendationTypes,
		Logger:              logger,
	})
	a.Matcher = matcher.New(a.Store, reg, a.Gateway, a.Metrics, logger)

	deps := service.Dependencies{
		Gateway:  a.Gateway,
		Matcher:  a.Matcher,
		Builder:  builder.New(reg, logger),
		Registry: reg,
		Store:    a.Store,
		Metrics:  a.Metrics,
		Logger:   logger,
		Timeout:  cfg.RunTimeout,
	}
	if a.History != nil {
		deps.Audit = a.History
	}
	a.Pipeline = service.NewPipeline(deps)

	return a, nil
}

// checkWordlePlayers makes sure both players' scores have a number field to
// land in.
func checkWordlePlayers(reg *schema.Registry, cfg config.Config) error {
	coll, err := reg.CollectionFor(models.CategoryWordle)
	if err != nil {
		return &config.ConfigurationError{Err: err}
	}
	var errs []error
	for _, player := range []string{cfg.SelfName, cfg.Opponent} {
		f, ok := coll.Field(player)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("wordle player %q has no field in the %s collection", player, coll.Key))
		case f.Type != models.PropNumber:
			errs = append(errs, fmt.Errorf("wordle field %q in %s must be a number, got %s", player, coll.Key, f.Type))
		}
	}
	if len(errs) > 0 {
		return &config.ConfigurationError{Err: errors.Join(errs...)}
	}
	return nil
}

func (a *App) openStore() (workspace.Store, error) {
	switch a.Config.Store {
	case config.StoreNotion:
		ids, err := a.Registry.DatabaseIDs(os.Getenv)
		if err != nil {
			return nil, err
		}
		dbs := make(map[string]workspace.NotionDatabase, len(ids))
		for key, id := range ids {
			dbs[key] = workspace.NotionDatabase{ID: id, TitleField: a.Registry.TitleField(key)}
		}
		return workspace.NewNotion(a.Config.NotionKey, dbs), nil
	case config.StoreSurreal:
		a.Surreal = db.NewWorkspaceStore(a.db)
		return a.Surreal, nil
	case config.StoreMemory:
		a.Logger.Warn("using in-memory store, records are lost on exit")
		return workspace.NewMemStore(), nil
	default:
		return nil, &config.ConfigurationError{Err: fmt.Errorf("unknown DICTATE_STORE %q", a.Config.Store)}
	}
}

// ToolDeps returns the MCP tool dependencies, with background captures
// running on jobs.
func (a *App) ToolDeps(jobs *service.JobManager) *tools.Dependencies {
	deps := &tools.Dependencies{
		Pipeline:   a.Pipeline,
		Jobs:       jobs,
		Classifier: a.Gateway,
		Matcher:    a.Matcher,
		Registry:   a.Registry,
		Metrics:    a.Metrics,
		Logger:     a.Logger,
	}
	if a.History != nil {
		deps.History = a.History
	}
	return deps
}

// Close closes the database connection, if any.
func (a *App) Close(ctx context.Context) error {
	if a.db != nil {
		return a.db.Close(ctx)
	}
	return nil
}
