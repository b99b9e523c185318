package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"pulsaroutlier/adapters/chainstore"
	"pulsaroutlier/adapters/db"
	"pulsaroutlier/adapters/noisemodel"
	"pulsaroutlier/adapters/residuals"
	"pulsaroutlier/adapters/rng"
	"pulsaroutlier/app"
	"pulsaroutlier/domain/noise"
	"pulsaroutlier/internal/config"
	"pulsaroutlier/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	DB *sqlx.DB

	// Repositories (data access layer)
	ResultsRepo ports.ResultsRepository

	// Adapters
	Reader ports.ResidualReader
	RNG    ports.RNGPort

	OutlierService *app.OutlierService
}

// New creates a container without a database. Results are not persisted
// until InitWithDatabase is called.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
		Reader: residuals.NewDataReader(logger),
		RNG:    rng.New(),
	}
	c.initService()
	return c, nil
}

// InitWithDatabase opens the configured database, applies migrations and
// rebuilds the service around the results repository
func (c *Container) InitWithDatabase(ctx context.Context) error {
	sqlDB, err := db.Open(ctx, c.Config.Database.Driver, c.Config.Database.URL)
	if err != nil {
		return err
	}
	c.DB = sqlDB
	c.ResultsRepo = db.NewResultsRepository(sqlDB)
	c.initService()

	c.Logger.Info("database initialized", zap.String("driver", c.Config.Database.Driver))
	return nil
}

func (c *Container) initService() {
	c.OutlierService = app.NewOutlierService(c.Reader, c.ResultsRepo, c.RNG, c.ModelFactory(), c.StoreFactory(), c.Logger)
}

// ModelFactory builds the timing noise model selected by the configuration
func (c *Container) ModelFactory() app.ModelFactory {
	opts := noisemodel.DefaultOptions()
	opts.Components = c.Config.Noise.RedNoiseComponents
	opts.ECORR = c.Config.Noise.ECORR
	opts.EQUAD = c.Config.Noise.EQUAD
	return func(obs *noise.ObservationSet) (ports.NoiseModel, error) {
		return noisemodel.New(obs, opts)
	}
}

// StoreFactory opens text chain stores
func (c *Container) StoreFactory() app.StoreFactory {
	return func(dir string) ports.ChainStore { return chainstore.NewTextStore(dir, c.Logger) }
}

// Shutdown releases the database connection
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
