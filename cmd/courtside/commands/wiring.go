package commands

import (
	"fmt"
	"io"

	"github.com/arencloud/courtside/internal/config"
	"github.com/arencloud/courtside/internal/db"
	"github.com/arencloud/courtside/internal/loader"
	"github.com/arencloud/courtside/internal/logging"
	"github.com/arencloud/courtside/internal/s3"
	"github.com/arencloud/courtside/internal/snapshot"
	"github.com/arencloud/courtside/internal/warehouse"
	"github.com/arencloud/courtside/internal/warehouse/local"
	"github.com/arencloud/courtside/internal/warehouse/snowflake"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newStore(cfg *config.Config) *snapshot.S3Store {
	return snapshot.NewS3Store(s3.NewFromConfig(cfg), cfg.S3Bucket)
}

// newConnector picks the warehouse driver. The returned closer releases
// process-wide resources such as the local database pool.
func newConnector(cfg *config.Config, store snapshot.Store, log logging.Logger) (warehouse.Connector, io.Closer, error) {
	switch cfg.WarehouseDriver {
	case "snowflake":
		return snowflake.NewConnector(cfg.Snowflake, log), nopCloser{}, nil
	case "postgres", "postgresql", "sqlite":
		gdb, err := db.Open(cfg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("open local warehouse: %w", err)
		}
		c := local.NewConnector(gdb, store, log)
		return c, c, nil
	default:
		return nil, nil, fmt.Errorf("unsupported WAREHOUSE_DRIVER %q", cfg.WarehouseDriver)
	}
}

// newLoader validates configuration before building any client so that a
// misconfigured run fails without touching the network.
func newLoader(cfg *config.Config, log logging.Logger) (*loader.Loader, io.Closer, error) {
	if err := cfg.ValidateLoad(); err != nil {
		return nil, nil, &loader.Error{Kind: loader.KindConfig, Op: "validate config", Err: err}
	}
	store := newStore(cfg)
	conn, closer, err := newConnector(cfg, store, log)
	if err != nil {
		return nil, nil, &loader.Error{Kind: loader.KindInfrastructure, Op: "connect warehouse", Err: err}
	}
	return loader.New(cfg, store, conn, log), closer, nil
}
