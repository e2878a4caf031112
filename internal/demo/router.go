// Package demo is the HTTP surface of `cqtrace serve`: a small job board API
// whose handlers exercise trace propagation across goroutines, outbound
// calls, SQL and GraphQL errors.
package demo

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/Combine-Capital/cqtrace/pkg/database"
	cqerrors "github.com/Combine-Capital/cqtrace/pkg/errors"
	"github.com/Combine-Capital/cqtrace/pkg/graphql"
	"github.com/Combine-Capital/cqtrace/pkg/health"
	"github.com/Combine-Capital/cqtrace/pkg/httpclient"
	"github.com/Combine-Capital/cqtrace/pkg/logging"
	"github.com/Combine-Capital/cqtrace/pkg/metrics"
	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
	"github.com/gin-gonic/gin"
)

const maxFanout = 16

// Deps are the components the routes use. Client and DB are optional; their
// routes answer 503 when unset.
type Deps struct {
	Logger   *logging.Logger
	Observer *tracectx.Observer
	Health   *health.Health
	Client   *httpclient.Client
	DB       database.Database
	Metrics  bool
	GraphQL  *graphql.ErrorLogger
	Format   *graphql.FormatterOptions
}

type server struct {
	Deps
}

// NewRouter registers the demo routes on a new gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Observer == nil {
		d.Observer = tracectx.Default()
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.Health == nil {
		d.Health = health.New(health.WithObserver(d.Observer))
	}
	if d.GraphQL == nil {
		d.GraphQL = graphql.NewErrorLogger(d.Logger, graphql.WithObserver(d.Observer))
	}
	s := &server{Deps: d}

	r := gin.New()
	r.GET("/healthz", gin.WrapF(d.Health.LivenessHandler()))
	r.GET("/readiness", gin.WrapF(d.Health.ReadinessHandler()))
	if d.Metrics {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	r.GET("/trace", s.trace)
	r.GET("/fanout", s.fanout)
	r.GET("/downstream", s.downstream)
	r.GET("/jobs/count", s.countJobs)
	r.POST("/graphql", s.graphql)
	return r
}

func (s *server) trace(c *gin.Context) {
	id, ok := s.Observer.GetTraceContext()
	c.JSON(http.StatusOK, gin.H{"trace": id, "present": ok})
}

// fanout runs n tasks on traced goroutines and reports the trace each saw.
func (s *server) fanout(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "3"))
	if err != nil || n < 1 || n > maxFanout {
		writeError(c, cqerrors.NewInvalidInput("n", "must be between 1 and 16"))
		return
	}

	seen := make([]string, n)
	var mu sync.Mutex
	g, _ := s.Observer.NewGroup(c.Request.Context())
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			id, _ := s.Observer.GetTraceContext()
			s.Logger.LogContext(context.Background(), logging.SeverityDebug, "fanout task", map[string]interface{}{"task": i})
			mu.Lock()
			seen[i] = id
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	id, _ := s.Observer.GetTraceContext()
	c.JSON(http.StatusOK, gin.H{"trace": id, "tasks": seen})
}

// downstream calls the configured upstream, forwarding the trace header.
func (s *server) downstream(c *gin.Context) {
	if s.Client == nil {
		writeError(c, cqerrors.NewTemporary("no downstream configured", nil))
		return
	}
	resp, err := s.Client.Get(c.Request.Context(), c.DefaultQuery("path", "/")).Do()
	if err != nil && resp == nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": resp.StatusCode()})
}

func (s *server) countJobs(c *gin.Context) {
	if s.DB == nil {
		writeError(c, cqerrors.NewTemporary("no database configured", nil))
		return
	}
	var count int64
	if err := s.DB.QueryRow(c.Request.Context(), "SELECT count(*) FROM jobs").Scan(&count); err != nil {
		writeError(c, cqerrors.Wrap(err, "counting jobs"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func writeError(c *gin.Context, err error) {
	code := cqerrors.HTTPStatusCode(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		msg = http.StatusText(code)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
