// Package status serves the node's local diagnostics HTTP API. It is the
// on-network counterpart to the command link: read-only views of the sample
// store, the plant classification and the node's health.
package status

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/verdantworks/soilnode/internal/store"
	"github.com/verdantworks/soilnode/internal/types"
	"go.uber.org/zap"
)

// ConditionSource reports the most recent plant classification.
type ConditionSource interface {
	Current() types.PlantCondition
}

// ProfileSource reports the active plant profile.
type ProfileSource interface {
	Profile() types.PlantProfile
}

// LinkState reports the command-link and network state.
type LinkState interface {
	Subscribed() bool
}

// NetworkState reports uplink connectivity.
type NetworkState interface {
	Connected() bool
}

// Config holds the HTTP listener settings.
type Config struct {
	ListenAddr string `yaml:"listen-addr"`
}

// Controller represents the diagnostics HTTP controller.
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	cfg       Config
	server    http.Server
	logger    *zap.SugaredLogger
	startTime time.Time

	store     *store.Store
	condition ConditionSource
	profiles  ProfileSource
	link      LinkState
	network   NetworkState
}

// NewController creates the diagnostics controller.
func NewController(ctx context.Context, wg *sync.WaitGroup, cfg Config, st *store.Store,
	condition ConditionSource, profiles ProfileSource, link LinkState, network NetworkState,
	logger *zap.SugaredLogger) *Controller {

	ctrl := &Controller{
		ctx:       ctx,
		wg:        wg,
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
		store:     st,
		condition: condition,
		profiles:  profiles,
		link:      link,
		network:   network,
	}

	ctrl.server = http.Server{
		Addr:    cfg.ListenAddr,
		Handler: ctrl.setupRouter(),
	}
	return ctrl
}

// StartController starts serving and shuts down on context cancellation.
func (c *Controller) StartController() error {
	c.logger.Infof("starting diagnostics HTTP server on %v", c.cfg.ListenAddr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := c.server.ListenAndServe(); err != http.ErrServerClosed {
			c.logger.Errorf("diagnostics server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the diagnostics server...")
		c.server.Shutdown(context.Background())
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	handlers := newHandlers(c)

	router := mux.NewRouter()
	router.HandleFunc("/api/status", handlers.GetStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/sample/latest", handlers.GetLatestSample).Methods(http.MethodGet)
	router.HandleFunc("/api/samples/recent", handlers.GetRecentSamples).Methods(http.MethodGet)
	router.HandleFunc("/api/history", handlers.GetHistory).Methods(http.MethodGet)
	router.HandleFunc("/api/condition", handlers.GetCondition).Methods(http.MethodGet)
	router.HandleFunc("/api/profile", handlers.GetProfile).Methods(http.MethodGet)
	return router
}
