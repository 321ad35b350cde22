package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/registrar/clog"
	"github.com/ceyewan/registrar/metrics"
	"github.com/ceyewan/registrar/registrar"
	"github.com/ceyewan/registrar/trace"
	"github.com/ceyewan/registrar/xerrors"
)

type descriptorView struct {
	Name     string            `json:"name"`
	Version  string            `json:"version"`
	Address  string            `json:"address"`
	Metadata map[string]string `json:"metadata"`
}

type statusView struct {
	State      string          `json:"state"`
	ServiceID  string          `json:"service_id,omitempty"`
	Attempts   int             `json:"attempts"`
	Descriptor *descriptorView `json:"descriptor,omitempty"`
}

// registration Manager 的只读视图
type registration interface {
	State() registrar.State
	ServiceID() string
	Attempts() int
	Descriptor() *registrar.ServiceDescriptor
}

func newStatusRouter(reg registration, meter metrics.Meter, metricsPath string, logger clog.Logger) (*gin.Engine, error) {
	httpMetrics, err := metrics.NewHTTPServerMetrics(meter, "registrar")
	if err != nil {
		return nil, xerrors.Wrap(err, "create http metrics")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(trace.GinMiddleware("registrar", metricsPath, "/healthz"))
	r.Use(metrics.GinHTTPMiddleware(httpMetrics, metricsPath))

	r.GET(metricsPath, gin.WrapH(meter.Handler()))

	r.GET("/status", func(c *gin.Context) {
		view := statusView{
			State:     reg.State().String(),
			ServiceID: reg.ServiceID(),
			Attempts:  reg.Attempts(),
		}
		if d := reg.Descriptor(); d != nil {
			view.Descriptor = &descriptorView{
				Name:     d.Name(),
				Version:  d.Version(),
				Address:  d.Address(),
				Metadata: d.Metadata(),
			}
		}
		c.JSON(http.StatusOK, view)
	})

	// FAILED 之外都视为存活，注册中心暂时不可达不应导致 sidecar 被重启
	r.GET("/healthz", func(c *gin.Context) {
		state := reg.State()
		if state == registrar.StateFailed {
			logger.Debug("healthz reports failed registration")
			c.JSON(http.StatusServiceUnavailable, gin.H{"state": state.String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": state.String()})
	})
	return r, nil
}

func newStatusServer(addr, metricsPath string, reg registration, meter metrics.Meter, logger clog.Logger) (*http.Server, error) {
	router, err := newStatusRouter(reg, meter, metricsPath, logger)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}
