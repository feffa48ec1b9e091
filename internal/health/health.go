// Package health reports whether the API's backing stores are reachable,
// over HTTP and as a gRPC health service.
package health

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"slackclone/internal/common"
)

const ServiceName = "slackclone-api"

const checkTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

type Response struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Error   string `json:"error,omitempty"`
}

type check struct {
	name string
	ping Pinger
}

type Checker struct {
	mu     sync.RWMutex
	checks []check
	grpc   *health.Server
}

func NewChecker() *Checker {
	return &Checker{grpc: health.NewServer()}
}

// Add registers a dependency. The first one added is the database.
func (c *Checker) Add(name string, ping Pinger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check{name: name, ping: ping})
}

// Check pings every dependency and joins the failures.
func (c *Checker) Check(ctx context.Context) error {
	c.mu.RLock()
	checks := append([]check(nil), c.checks...)
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var errs []error
	for _, chk := range checks {
		if err := chk.ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", chk.name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := c.Check(r.Context()); err != nil {
		log.Printf("❌ Health check failed: %v", err)
		common.WriteJSON(w, http.StatusServiceUnavailable, Response{
			Status:  "unhealthy",
			Service: ServiceName,
			Error:   "Database connection failed",
		})
		return
	}
	common.WriteJSON(w, http.StatusOK, Response{Status: "healthy", Service: ServiceName})
}

// Refresh runs the checks once and records the result in the gRPC health
// service, both overall and under ServiceName.
func (c *Checker) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := c.Check(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.grpc.SetServingStatus("", status)
	c.grpc.SetServingStatus(ServiceName, status)
	return status
}

// Watch refreshes the gRPC status every interval until ctx is done, then
// marks the service as shutting down.
func (c *Checker) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := c.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			c.grpc.Shutdown()
			return
		case <-ticker.C:
			if status := c.Refresh(ctx); status != last {
				log.Printf("Health status changed: %s -> %s", last, status)
				last = status
			}
		}
	}
}

// NewGRPCServer builds the gRPC server exposing the health service, with
// request logging and reflection.
func NewGRPCServer(c *Checker) *grpc.Server {
	server := grpc.NewServer(
		grpc.UnaryInterceptor(common.LoggingUnaryInterceptor),
		grpc.StreamInterceptor(common.LoggingStreamInterceptor),
	)
	healthpb.RegisterHealthServer(server, c.grpc)
	reflection.Register(server)
	return server
}
