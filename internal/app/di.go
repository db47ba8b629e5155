// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/cripta/envelopesvc/internal/config"
	"github.com/cripta/envelopesvc/internal/custodian"
	"github.com/cripta/envelopesvc/internal/database"
	"github.com/cripta/envelopesvc/internal/dekcache"
	"github.com/cripta/envelopesvc/internal/envelope/domain"
	envelopeHTTP "github.com/cripta/envelopesvc/internal/envelope/http"
	"github.com/cripta/envelopesvc/internal/envelope/repository"
	"github.com/cripta/envelopesvc/internal/envelope/repository/mysql"
	"github.com/cripta/envelopesvc/internal/envelope/repository/postgresql"
	"github.com/cripta/envelopesvc/internal/envelope/usecase"
	apphttp "github.com/cripta/envelopesvc/internal/http"
	"github.com/cripta/envelopesvc/internal/keymanagement"
	"github.com/cripta/envelopesvc/internal/keymanagement/cloudkms"
	"github.com/cripta/envelopesvc/internal/keymanagement/localmaster"
	"github.com/cripta/envelopesvc/internal/keymanagement/transit"
	"github.com/cripta/envelopesvc/internal/metrics"
	"github.com/cripta/envelopesvc/internal/tenant"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger *slog.Logger

	// Per-tenant state, built once as a batch because the global tenant and
	// every configured tenant share nothing and must all be live before the
	// router can route a single request.
	router *tenant.Router
	dbs    []*sql.DB
	chains []*localmaster.Chain
	keeper []*cloudkms.Backend

	// Business layer
	metricsProvider *metrics.Provider
	businessMetrics usecase.BusinessMetrics
	engine          *usecase.Engine

	// Servers
	envelopeHandler *envelopeHTTP.Handler
	httpServer      *apphttp.Server
	metricsServer   *apphttp.MetricsServer

	mu                  sync.Mutex
	loggerInit          sync.Once
	routerInit          sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	engineInit          sync.Once
	envelopeHandlerInit sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// Router returns the tenant router, built from the global tenant plus every
// tenant listed in the tenant config file.
func (c *Container) Router() (*tenant.Router, error) {
	var err error
	c.routerInit.Do(func() {
		c.router, err = c.initRouter()
		if err != nil {
			c.initErrors["router"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["router"]; exists {
		return nil, storedErr
	}
	return c.router, nil
}

// MetricsProvider returns the otel/Prometheus metrics provider, or nil if
// metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the engine's operation-counter collaborator.
func (c *Container) BusinessMetrics() (usecase.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// Engine returns the envelope engine.
func (c *Container) Engine() (*usecase.Engine, error) {
	var err error
	c.engineInit.Do(func() {
		c.engine, err = c.initEngine()
		if err != nil {
			c.initErrors["engine"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["engine"]; exists {
		return nil, storedErr
	}
	return c.engine, nil
}

// EnvelopeHandler returns the HTTP handler for the envelope control surface.
func (c *Container) EnvelopeHandler() (*envelopeHTTP.Handler, error) {
	var err error
	c.envelopeHandlerInit.Do(func() {
		c.envelopeHandler, err = c.initEnvelopeHandler()
		if err != nil {
			c.initErrors["envelopeHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["envelopeHandler"]; exists {
		return nil, storedErr
	}
	return c.envelopeHandler, nil
}

// HTTPServer returns the main API HTTP server.
func (c *Container) HTTPServer() (*apphttp.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the standalone Prometheus metrics HTTP server.
func (c *Container) MetricsServer() (*apphttp.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}
	for _, chain := range c.chains {
		chain.Close()
	}
	for _, k := range c.keeper {
		if err := k.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("kms keeper close: %w", err))
		}
	}
	for _, db := range c.dbs {
		if err := db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}
	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}

// initRouter builds the global tenant.State plus one per configured tenant,
// wiring each one's database, KeyManagement backend, DEK cache and custodian
// hash context from its TenantSettings.
func (c *Container) initRouter() (*tenant.Router, error) {
	global, err := c.buildTenantState(c.config.Global)
	if err != nil {
		return nil, fmt.Errorf("building global tenant state: %w", err)
	}

	router := tenant.NewRouter(global)

	tenants, err := c.config.LoadTenants()
	if err != nil {
		return nil, fmt.Errorf("loading tenant config: %w", err)
	}
	for _, settings := range tenants {
		state, err := c.buildTenantState(settings)
		if err != nil {
			return nil, fmt.Errorf("building tenant %q state: %w", settings.TenantID, err)
		}
		router.Register(tenant.ID(settings.TenantID), state)
	}

	return router, nil
}

// buildTenantState constructs one tenant.State: its database connection,
// its selected KeyManagement backend, its DEK repository (picked by
// DBDriver), its DEK cache, and its custodian hash context. Every resource
// it opens is tracked on the Container so Shutdown can release it.
func (c *Container) buildTenantState(settings config.TenantSettings) (*tenant.State, error) {
	db, err := database.Connect(database.Config{
		Driver:             settings.DBDriver,
		ConnectionString:   settings.DBConnectionString,
		MaxOpenConnections: settings.DBMaxOpenConnections,
		MaxIdleConnections: settings.DBMaxIdleConnections,
		ConnMaxLifetime:    settings.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database for tenant %q: %w", settings.TenantID, err)
	}
	c.dbs = append(c.dbs, db)

	var dekRepo repository.DekRepository
	switch settings.DBDriver {
	case "mysql":
		dekRepo = mysql.New(db)
	case "postgres":
		dekRepo = postgresql.New(db)
	default:
		return nil, fmt.Errorf("unsupported database driver %q for tenant %q", settings.DBDriver, settings.TenantID)
	}

	backend, err := c.buildKeyManagementBackend(settings)
	if err != nil {
		return nil, fmt.Errorf("building key management backend for tenant %q: %w", settings.TenantID, err)
	}

	secret, err := decodeCustodianSecret(settings.CustodianSecretBase64)
	if err != nil {
		return nil, fmt.Errorf("decoding custodian secret for tenant %q: %w", settings.TenantID, err)
	}

	return &tenant.State{
		KeyManager: backend,
		HashContext: custodian.TenantHashContext{
			Context: settings.CustodianContext,
			Secret:  secret,
		},
		DekRepo:    dekRepo,
		TxMgr:      database.NewTxManager(db),
		Cache:      dekcache.New(settings.TenantID, settings.DekCacheTTL),
		WorkerPool: settings.WorkerPoolSize,
	}, nil
}

// buildKeyManagementBackend selects and constructs the internal/keymanagement
// implementation named by settings.Backend.
func (c *Container) buildKeyManagementBackend(settings config.TenantSettings) (keymanagement.Backend, error) {
	switch settings.Backend {
	case "localmaster":
		keys, err := localmaster.ParseMasterKeys(settings.LocalMaster.MasterKeys)
		if err != nil {
			return nil, err
		}
		chain, err := localmaster.NewChain(settings.LocalMaster.ActiveID, keys)
		if err != nil {
			return nil, err
		}
		c.chains = append(c.chains, chain)
		return localmaster.New(chain, localmaster.Algorithm(settings.LocalMaster.Algorithm)), nil
	case "cloudkms":
		backend, err := cloudkms.Open(context.Background(), settings.CloudKMS.KeyURI)
		if err != nil {
			return nil, err
		}
		c.keeper = append(c.keeper, backend)
		return backend, nil
	case "transit":
		return transit.New(context.Background(), transit.Config{
			Address:     settings.Transit.Address,
			Token:       settings.Transit.Token,
			Namespace:   settings.Transit.Namespace,
			TransitPath: settings.Transit.TransitPath,
			KeyName:     settings.Transit.KeyName,
		})
	default:
		return nil, fmt.Errorf("%w: unknown key management backend %q", domain.ErrKeyGeneration, settings.Backend)
	}
}

func decodeCustodianSecret(b64 string) ([]byte, error) {
	if b64 == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(b64)
}

// initMetricsProvider builds the otel/Prometheus provider, or returns nil,
// nil when metrics are disabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	return metrics.NewProvider(c.config.MetricsNamespace)
}

// initBusinessMetrics wires the engine's operation counters to the metrics
// provider, falling back to a no-op collaborator when metrics are disabled.
func (c *Container) initBusinessMetrics() (usecase.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	return metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

func (c *Container) initEngine() (*usecase.Engine, error) {
	router, err := c.Router()
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant router for engine: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for engine: %w", err)
	}
	return usecase.New(router, businessMetrics, c.Logger()), nil
}

func (c *Container) initEnvelopeHandler() (*envelopeHTTP.Handler, error) {
	engine, err := c.Engine()
	if err != nil {
		return nil, fmt.Errorf("failed to get engine for envelope handler: %w", err)
	}
	return envelopeHTTP.NewHandler(engine, c.Logger()), nil
}

func (c *Container) initHTTPServer() (*apphttp.Server, error) {
	router, err := c.Router()
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant router for http server: %w", err)
	}
	handler, err := c.EnvelopeHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope handler for http server: %w", err)
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := apphttp.NewServer(c.globalDB(), c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(c.config, handler, router, provider, c.config.MetricsNamespace)
	return server, nil
}

func (c *Container) initMetricsServer() (*apphttp.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	return apphttp.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}

// globalDB returns the first database opened while building the router: the
// global tenant's. Router() must have been called before this is used.
func (c *Container) globalDB() *sql.DB {
	if len(c.dbs) == 0 {
		return nil
	}
	return c.dbs[0]
}
