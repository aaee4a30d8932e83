package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vidtube/internal/middleware"
	"vidtube/internal/modules/auth"
	"vidtube/internal/pkg/response"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Auth      *auth.Handler
	Tokens    middleware.AccessVerifier
	Users     middleware.UserLookup
	Log       zerolog.Logger
	CORS      []string
	LoginRate middleware.RateLimitConfig
	Checks    map[string]HealthCheck
}

// NewRouter assembles the HTTP surface: /healthz plus /api/v1.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.CORS(d.CORS))

	r.GET("/healthz", healthz(d.Checks))

	v1 := r.Group("/api/v1")
	{
		d.Auth.RegisterPublicRoutes(v1, middleware.RateLimitByIP(d.LoginRate, d.Log))

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(d.Tokens, d.Users, d.Log))
		{
			d.Auth.RegisterProtectedRoutes(protected)
		}
	}
	return r
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				healthy = false
				status[name] = err.Error()
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			response.ErrorWithDetails(c, http.StatusServiceUnavailable, "UNHEALTHY", "Dependency check failed", status)
			return
		}
		response.Success(c, http.StatusOK, status)
	}
}
