package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps"`
}

// Probe is a named readiness check contributed by another module through
// the "health.probes" value group.
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type health struct {
	db     *gorm.DB
	redis  *redis.Client
	probes []Probe
}

type HealthParams struct {
	fx.In
	DB     *gorm.DB      `optional:"true"`
	Redis  *redis.Client `optional:"true"`
	Probes []Probe       `group:"health.probes"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{
		db:     p.DB,
		redis:  p.Redis,
		probes: p.Probes,
	}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:  StatusHealthy,
		Message: "OK",
	})
}

func check(name string, err error) Dependency {
	dep := Dependency{Name: name, Status: StatusHealthy, Message: "OK"}
	if err != nil {
		dep.Status = StatusUnhealthy
		dep.Message = err.Error()
	}
	return dep
}

func (h *health) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	deps := make([]Dependency, 0, len(h.probes)+2)
	if h.db != nil {
		sql, err := h.db.DB()
		if err == nil {
			err = sql.PingContext(ctx)
		}
		deps = append(deps, check("database:"+h.db.Name(), err))
	}

	if h.redis != nil {
		deps = append(deps, check("redis", h.redis.Ping(ctx).Err()))
	}

	for _, p := range h.probes {
		deps = append(deps, check(p.Name(), p.Check(ctx)))
	}

	this := &Health{
		Status:  StatusHealthy,
		Message: "OK",
		Deps:    deps,
	}

	code := http.StatusOK
	for _, d := range deps {
		if d.Status != StatusHealthy {
			this.Status = StatusUnhealthy
			this.Message = d.Name + " not ready"
			code = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, this)
}
