package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/whisper-server/component"
)

// Summary prints what the service started with: infrastructure reported by
// Describable components, routes from RouteProvider components, and live
// health.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	out             io.Writer
	noColor         bool
}

// NewSummary creates a summary that writes to out.
func NewSummary(serviceName, version string, out io.Writer) *Summary {
	return &Summary{serviceName: serviceName, version: version, out: out}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// DisableColor turns off ANSI colors for HTTP methods.
func (s *Summary) DisableColor() {
	s.noColor = true
}

type collected struct {
	infra  []component.Description
	routes []component.Route
}

func collect(registry *component.Registry) collected {
	var c collected
	if registry == nil {
		return c
	}
	for _, comp := range registry.All() {
		if d, ok := comp.(component.Describable); ok {
			desc := d.Describe()
			if desc.Name == "" {
				desc.Name = comp.Name()
			}
			c.infra = append(c.infra, desc)
		}
		if rp, ok := comp.(component.RouteProvider); ok {
			c.routes = append(c.routes, rp.Routes()...)
		}
	}
	return c
}

// Display writes the summary. A nil registry prints only the header.
func (s *Summary) Display(ctx context.Context, registry *component.Registry) {
	w := s.out
	c := collect(registry)

	fmt.Fprintf(w, "\n🚀 %s v%s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if len(c.infra) > 0 {
		fmt.Fprintf(w, "\n📊 Infrastructure\n")
		for i, d := range c.infra {
			details := d.Details
			if d.Port > 0 && !strings.HasSuffix(details, fmt.Sprintf(":%d", d.Port)) {
				details = fmt.Sprintf("%s (:%d)", details, d.Port)
			}
			fmt.Fprintf(w, "   %s %s [%s]: %s\n", treePrefix(i, len(c.infra)), d.Name, d.Type, details)
		}
	}

	if len(c.routes) > 0 {
		fmt.Fprintf(w, "\n🌐 Routes (%d)\n", len(c.routes))
		for i, r := range c.routes {
			fmt.Fprintf(w, "   %s %s %s → %s\n", treePrefix(i, len(c.routes)), s.method(r.Method), r.Path, r.Handler)
		}
	}

	if registry != nil {
		results := registry.HealthAll(ctx)
		if len(results) > 0 {
			healthy := 0
			fmt.Fprintf(w, "\n🏥 Health Check\n")
			for i, h := range results {
				if h.Status == component.StatusHealthy {
					healthy++
				}
				msg := ""
				if h.Message != "" {
					msg = " - " + h.Message
				}
				fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(results)), healthStatusIcon(h.Status), h.Name, h.Status, msg)
			}
			if healthy == len(results) {
				fmt.Fprintf(w, "\n✅ All components healthy (%d/%d)\n", healthy, len(results))
			} else {
				fmt.Fprintf(w, "\n⚠️  Some components have issues (%d/%d healthy)\n", healthy, len(results))
			}
		}
	}
	fmt.Fprintln(w)
}

func (s *Summary) method(m string) string {
	padded := fmt.Sprintf("%-6s", m)
	if s.noColor {
		return padded
	}
	return methodColor(m) + padded + "\033[0m"
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func methodColor(method string) string {
	switch method {
	case "GET":
		return "\033[32m"
	case "POST":
		return "\033[34m"
	case "PUT", "PATCH":
		return "\033[33m"
	case "DELETE":
		return "\033[31m"
	default:
		return "\033[37m"
	}
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
