package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Combine-Capital/cqtrace/internal/demo"
	"github.com/Combine-Capital/cqtrace/pkg/config"
	"github.com/Combine-Capital/cqtrace/pkg/database"
	"github.com/Combine-Capital/cqtrace/pkg/graphql"
	"github.com/Combine-Capital/cqtrace/pkg/httpclient"
	"github.com/Combine-Capital/cqtrace/pkg/retry"
	"github.com/Combine-Capital/cqtrace/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type serveOptions struct {
	*RootOptions
	logLevel string
}

// NewServeCommand runs the demo service behind the full middleware chain.
func NewServeCommand(root *RootOptions) *cobra.Command {
	opts := &serveOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.NewViper(opts.EnvPrefix)
			if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
				if err := v.BindPFlag("log.level", f); err != nil {
					return err
				}
			}
			cfg, err := loadConfig(v, opts.ConfigPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warning, error, ...)")
	return cmd
}

func loadConfig(v *viper.Viper, path string) (*config.Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return config.FromViper(v)
}

func serve(ctx context.Context, cfg *config.Config) error {
	b, err := service.NewBootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Cleanup(context.Background())
	ctx = b.Context(ctx)

	deps := demo.Deps{
		Logger:   b.Logger,
		Observer: b.Observer,
		Health:   b.Health,
		Metrics:  cfg.Metrics.Enabled,
		GraphQL: graphql.NewErrorLogger(b.Logger,
			graphql.WithObserver(b.Observer), graphql.WithHeader(cfg.Trace.Header)),
		Format: &graphql.FormatterOptions{BlackList: []string{"stacktrace"}},
	}

	if cfg.Database.Host != "" {
		pool, err := database.NewPool(ctx, cfg.Database,
			database.WithLogger(b.Logger),
			database.WithConnectRetry(retry.Config{MaxAttempts: 5, Policy: retry.PolicyAll, MaxDelay: 2 * time.Second}))
		if err != nil {
			return err
		}
		b.AddCleanup(func(context.Context) error { pool.Close(); return nil })
		b.Health.Register("database", pool)
		deps.DB = pool
	}

	if cfg.HTTPClient.BaseURL != "" {
		opts := []httpclient.Option{
			httpclient.WithLogger(b.Logger),
			httpclient.WithObserver(b.Observer),
			httpclient.WithTraceHeader(cfg.Trace.Header),
		}
		if cfg.Tracing.Enabled {
			opts = append(opts, httpclient.WithSpans())
		}
		if cfg.Metrics.Enabled {
			opts = append(opts, httpclient.WithMetrics(cfg.Metrics.Namespace))
		}
		client, err := httpclient.New(ctx, cfg.HTTPClient, opts...)
		if err != nil {
			return err
		}
		b.AddCleanup(func(context.Context) error { return client.Close() })
		deps.Client = client
	}

	if cfg.Service.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var services []service.Service
	if cfg.Server.HTTPPort > 0 {
		services = append(services, service.NewHTTPService(cfg.Service.Name+"-http",
			fmt.Sprintf(":%d", cfg.Server.HTTPPort),
			b.HTTPHandler(demo.NewRouter(deps)),
			service.WithServerConfig(cfg.Server)))
	}
	if cfg.Server.GRPCPort > 0 {
		services = append(services, service.NewGRPCService(cfg.Service.Name+"-grpc",
			fmt.Sprintf(":%d", cfg.Server.GRPCPort),
			func(s *grpc.Server) {
				grpc_health_v1.RegisterHealthServer(s, grpchealth.NewServer())
			},
			service.WithServerOptions(b.GRPCServerOptions()...),
			service.WithGRPCShutdownTimeout(cfg.Server.ShutdownTimeout),
			service.WithReflection(!cfg.Service.IsProduction())))
	}

	b.Logger.Info().Int("http_port", cfg.Server.HTTPPort).Int("grpc_port", cfg.Server.GRPCPort).Msg("serving")
	return service.Run(ctx, services...)
}
