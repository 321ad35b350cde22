package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ceyewan/registrar/breaker"
	"github.com/ceyewan/registrar/clog"
	"github.com/ceyewan/registrar/config"
	"github.com/ceyewan/registrar/metrics"
	"github.com/ceyewan/registrar/registrar"
	"github.com/ceyewan/registrar/trace"
	"github.com/ceyewan/registrar/xerrors"
)

type runOptions struct {
	configName  string
	configPaths []string
	envPrefix   string
}

// statusConfig sidecar 自身的状态服务
type statusConfig struct {
	Addr string `mapstructure:"addr"`
	// HealthURL 宿主健康检查地址，为空时始终上报 UP
	HealthURL string `mapstructure:"health_url"`
}

// breakerConfig 健康上报熔断器，默认关闭
type breakerConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	breaker.Config `mapstructure:",squash"`
}

// appConfig 配置文件的完整结构
type appConfig struct {
	Registration *registrar.Config
	Log          *clog.Config
	Metrics      *metrics.Config
	Trace        *trace.Config
	Status       statusConfig
	Breaker      breakerConfig
}

func defaultAppConfig() *appConfig {
	tc := trace.DefaultConfig("registrar")
	tc.Enabled = false
	return &appConfig{
		Registration: registrar.DefaultConfig(),
		Log:          clog.NewProdDefaultConfig(),
		Metrics: &metrics.Config{
			Enabled:     true,
			ServiceName: "registrar",
			Path:        "/metrics",
			Runtime:     true,
		},
		Trace:  tc,
		Status: statusConfig{Addr: ":8090"},
	}
}

func loadConfig(ctx context.Context, opts runOptions, boot clog.Logger) (config.Loader, *appConfig, error) {
	loader, err := config.New(&config.Config{
		Name:      opts.configName,
		Paths:     opts.configPaths,
		EnvPrefix: opts.envPrefix,
	}, config.WithLogger(boot))
	if err != nil {
		return nil, nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, nil, xerrors.Wrap(err, "load config")
	}

	cfg := defaultAppConfig()
	sections := []struct {
		key string
		v   any
	}{
		{"registration", cfg.Registration},
		{"log", cfg.Log},
		{"metrics", cfg.Metrics},
		{"trace", cfg.Trace},
		{"status", &cfg.Status},
		{"health_breaker", &cfg.Breaker},
	}
	for _, s := range sections {
		if err := loader.UnmarshalKey(s.key, s.v); err != nil {
			return nil, nil, xerrors.Wrapf(err, "unmarshal %s", s.key)
		}
	}
	return loader, cfg, nil
}

func run(ctx context.Context, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	boot := clog.Must(clog.NewProdDefaultConfig(), clog.WithNamespace("registrar"))
	loader, cfg, err := loadConfig(ctx, opts, boot)
	if err != nil {
		return err
	}

	logger, err := clog.New(cfg.Log, clog.WithNamespace("sidecar"), clog.WithTraceContext())
	if err != nil {
		return xerrors.Wrap(err, "create logger")
	}
	defer logger.Flush()

	shutdownTrace, err := trace.Init(cfg.Trace)
	if err != nil {
		return xerrors.Wrap(err, "init trace")
	}
	meter, err := metrics.New(cfg.Metrics, metrics.WithLogger(logger))
	if err != nil {
		return xerrors.Wrap(err, "create meter")
	}

	go watchLogLevel(ctx, loader, logger)

	var source registrar.HealthSource = registrar.StaticHealthSource(registrar.VerdictUp)
	if cfg.Status.HealthURL != "" {
		source = newHTTPHealthCheck(cfg.Status.HealthURL, logger)
	}

	opts := []registrar.Option{
		registrar.WithLogger(logger),
		registrar.WithMeter(meter),
		registrar.WithHealthSource(source),
	}
	if cfg.Breaker.Enabled {
		brk, err := breaker.New(&cfg.Breaker.Config, breaker.WithLogger(logger), breaker.WithMeter(meter))
		if err != nil {
			return xerrors.Wrap(err, "create health breaker")
		}
		opts = append(opts, registrar.WithBreaker(brk))
	}

	mgr, err := registrar.New(cfg.Registration, opts...)
	if err != nil {
		return err
	}

	srv, err := newStatusServer(cfg.Status.Addr, cfg.Metrics.Path, mgr, meter, logger)
	if err != nil {
		return err
	}
	go func() {
		logger.Info("status server listening", clog.String("addr", cfg.Status.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", clog.Error(err))
		}
	}()

	if err := mgr.Start(ctx); err != nil {
		// 描述不合法时 Manager 已进入 FAILED，状态页仍然保留便于排查
		logger.Error("registration not started", clog.Error(err))
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	rc := cfg.Registration.Registry
	shutdownCtx, cancel := context.WithTimeout(context.Background(), rc.Timeout+rc.ShutdownGrace+time.Second)
	defer cancel()

	err = xerrors.Combine(
		mgr.Shutdown(shutdownCtx),
		srv.Shutdown(shutdownCtx),
		meter.Shutdown(shutdownCtx),
		shutdownTrace(shutdownCtx),
	)
	if err != nil {
		logger.Warn("shutdown finished with error", clog.Error(err))
	}
	logger.Info("registrar stopped", clog.String("state", mgr.State().String()))
	return nil
}

// watchLogLevel 配置文件中的 log.level 变化后热更新日志级别
func watchLogLevel(ctx context.Context, loader config.Loader, logger clog.Logger) {
	ch, err := loader.Watch(ctx, "log.level")
	if err != nil {
		logger.Warn("log level hot reload disabled", clog.Error(err))
		return
	}
	for ev := range ch {
		level, err := clog.ParseLevel(fmt.Sprint(ev.Value))
		if err != nil {
			logger.Warn("ignore invalid log level", clog.Any("value", ev.Value))
			continue
		}
		if err := logger.SetLevel(level); err != nil {
			logger.Warn("set log level failed", clog.Error(err))
			continue
		}
		logger.Info("log level changed", clog.String("level", level.String()))
	}
}
