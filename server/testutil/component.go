package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/whisper-server/component"
	"github.com/kbukum/whisper-server/logger"
	"github.com/kbukum/whisper-server/observability"
	"github.com/kbukum/whisper-server/server"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Component is a test server component backed by httptest.Server.
type Component struct {
	srv     *server.Server
	ts      *httptest.Server
	metrics *observability.Metrics
	mu      sync.RWMutex
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a test server. mutate, when non-nil, adjusts the
// config after defaults are applied.
func NewComponent(mutate func(*server.Config)) *Component {
	cfg := server.Config{Host: "127.0.0.1", Port: 1}
	cfg.ApplyDefaults()
	if mutate != nil {
		mutate(&cfg)
	}
	metrics := observability.NewMetrics()
	return &Component{
		srv:     server.New(cfg, logger.Nop(), metrics),
		metrics: metrics,
	}
}

// GinEngine returns the Gin engine for registering routes.
func (c *Component) GinEngine() *gin.Engine {
	return c.srv.GinEngine()
}

// Server returns the underlying *server.Server.
func (c *Component) Server() *server.Server {
	return c.srv
}

// Metrics returns the collectors the server records into.
func (c *Component) Metrics() *observability.Metrics {
	return c.metrics
}

// BaseURL returns the test server's base URL, empty before Start.
func (c *Component) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ts == nil {
		return ""
	}
	return c.ts.URL
}

func (c *Component) Name() string { return "server-test" }

func (c *Component) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ts != nil {
		return fmt.Errorf("component already started")
	}
	c.ts = httptest.NewServer(c.srv.Handler())
	return nil
}

func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ts == nil {
		return nil
	}
	c.ts.Close()
	c.ts = nil
	return nil
}

func (c *Component) Health(_ context.Context) component.Health {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ts == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}
