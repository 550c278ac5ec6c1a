package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/whisper-server/component"
	"github.com/kbukum/whisper-server/errors"
	"github.com/kbukum/whisper-server/logger"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Host != "127.0.0.1" || cfg.Port != 8089 {
		t.Errorf("unexpected bind %s", cfg.Addr())
	}
	if cfg.MaxBodySize != "32MB" {
		t.Errorf("unexpected body limit %q", cfg.MaxBodySize)
	}
	if cfg.WriteTimeout < time.Minute {
		t.Errorf("write timeout too short for model loads: %s", cfg.WriteTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too high", func(c *Config) { c.Port = 70000 }},
		{"negative timeout", func(c *Config) { c.ReadTimeout = -time.Second }},
		{"no hosts", func(c *Config) { c.AllowedHosts = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	cfg := Config{Port: 1}
	cfg.ApplyDefaults()
	cfg.Port = 0
	srv := New(cfg, logger.Nop(), nil)
	comp := NewComponent(srv)

	if comp.Health(context.Background()).Status != component.StatusUnhealthy {
		t.Error("expected unhealthy before Start")
	}
	if err := comp.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if comp.Health(context.Background()).Status != component.StatusHealthy {
		t.Error("expected healthy once bound")
	}
	if strings.HasSuffix(srv.Addr(), ":0") {
		t.Errorf("expected the bound port, got %s", srv.Addr())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := comp.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRoutesSystemLast(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	srv := New(cfg, logger.Nop(), nil)
	srv.RegisterDefaultEndpoints("svc", nil)
	srv.GinEngine().POST("/v1/audio/transcriptions", func(*gin.Context) {})
	srv.GinEngine().GET("/v1/models", func(*gin.Context) {})

	routes := NewComponent(srv).Routes()
	if routes[0].Path != "/v1/audio/transcriptions" || routes[1].Path != "/v1/models" {
		t.Errorf("expected API routes first, got %+v", routes[:2])
	}
	last := routes[len(routes)-1]
	if !strings.HasSuffix(last.Handler, "(system)") {
		t.Errorf("expected system route last, got %+v", last)
	}
}

func TestFormatHandlerName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"github.com/kbukum/whisper-server/api.(*Handler).Transcribe-fm", "Handler.Transcribe"},
		{"github.com/kbukum/whisper-server/server/endpoint.Health.func1", "health"},
		{"main.main.func2", "main"},
	}
	for _, tt := range tests {
		if got := formatHandlerName(tt.in); got != tt.want {
			t.Errorf("formatHandlerName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"app error", errors.NotFound("model", "x"), http.StatusNotFound},
		{"plain error", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			RespondWithError(c, tt.err)
			if rr.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, rr.Code)
			}
			if strings.Contains(rr.Body.String(), "deadline") {
				t.Errorf("internal error text leaked: %s", rr.Body.String())
			}
		})
	}
}
