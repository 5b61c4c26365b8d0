package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/GriffinCanCode/teelog/internal/api/http"
	"github.com/GriffinCanCode/teelog/internal/infrastructure/config"
	"github.com/GriffinCanCode/teelog/internal/infrastructure/logging"
	"github.com/GriffinCanCode/teelog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/teelog/internal/infrastructure/server"
	"github.com/GriffinCanCode/teelog/internal/session"
)

// flagValues mirrors the config fields a flag can override.
type flagValues struct {
	configPath string

	host    string
	port    string
	server  bool
	shmPath string
	shmAddr uint64
	shmSize uint32

	interval time.Duration
	readMax  int
	lineMax  int
	mode     uint32
	retry    time.Duration

	sinkFile    string
	sinkArchive string
	remoteURL   string
	tail        bool

	logLevel string
	dev      bool
}

func bindFlags(fs *pflag.FlagSet, v *flagValues) {
	fs.StringVarP(&v.configPath, "config", "c", "", "YAML or TOML config file")

	fs.StringVar(&v.host, "host", "", "control API host")
	fs.StringVar(&v.port, "port", "", "control API port")
	fs.BoolVar(&v.server, "server", true, "serve the control API")

	fs.StringVar(&v.shmPath, "shm-path", "", "file or device holding the shared log region")
	fs.Uint64Var(&v.shmAddr, "shm-addr", 0, "byte offset (physical address) of the region")
	fs.Uint32Var(&v.shmSize, "shm-size", 0, "size of the region in bytes")

	fs.DurationVar(&v.interval, "interval", 0, "delay between drain cycles")
	fs.IntVar(&v.readMax, "read-max", 0, "bytes read per drain cycle")
	fs.IntVar(&v.lineMax, "line-max", 0, "longest line including newline and terminator")
	fs.Uint32Var(&v.mode, "mode", 0, "consumer mode written at attach (0 disables draining)")
	fs.DurationVar(&v.retry, "attach-retry", 0, "how long to retry attaching to an unready region")

	fs.StringVar(&v.sinkFile, "sink-file", "", "append lines to this rotating file")
	fs.StringVar(&v.sinkArchive, "sink-archive", "", "append lines to this zstd archive")
	fs.StringVar(&v.remoteURL, "sink-remote", "", "post line batches to this URL")
	fs.BoolVar(&v.tail, "tail", true, "offer the live tail WebSocket")

	fs.StringVar(&v.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.BoolVar(&v.dev, "dev", false, "development logging")
}

// apply copies every flag the user set over cfg.
func (v *flagValues) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("host", func() { cfg.Server.Host = v.host })
	set("port", func() { cfg.Server.Port = v.port })
	set("server", func() { cfg.Server.Enabled = v.server })
	set("shm-path", func() { cfg.Shm.Path = v.shmPath })
	set("shm-addr", func() { cfg.Shm.Addr = v.shmAddr })
	set("shm-size", func() { cfg.Shm.Size = v.shmSize })
	set("interval", func() { cfg.Drain.Interval = v.interval })
	set("read-max", func() { cfg.Drain.ReadMax = v.readMax })
	set("line-max", func() { cfg.Drain.LineMax = v.lineMax })
	set("mode", func() { cfg.Drain.Mode = v.mode })
	set("attach-retry", func() { cfg.Attach.RetryMaxElapsed = v.retry })
	set("sink-file", func() { cfg.Sinks.File = v.sinkFile })
	set("sink-archive", func() { cfg.Sinks.Archive = v.sinkArchive })
	set("sink-remote", func() { cfg.Sinks.RemoteURL = v.remoteURL })
	set("tail", func() { cfg.Sinks.Tail = v.tail })
	set("log-level", func() { cfg.Logging.Level = v.logLevel })
	set("dev", func() { cfg.Logging.Development = v.dev })
}

func newRootCommand() *cobra.Command {
	var flags flagValues

	cmd := &cobra.Command{
		Use:   "teelogd",
		Short: "Drain a secure-world log ring from shared memory",
		Long: `teelogd attaches to a shared-memory log ring written by a secure-world
producer, drains it once per interval and forwards every line to the
configured sinks.

Configuration precedence: defaults < --config file < environment < flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), &flags)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	bindFlags(cmd.Flags(), &flags)
	return cmd
}

func loadConfig(fs *pflag.FlagSet, flags *flagValues) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	flags.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	return logging.New(logCfg)
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		Addr:     cfg.Shm.Addr,
		Size:     cfg.Shm.Size,
		Interval: cfg.Drain.Interval,
		ReadMax:  cfg.Drain.ReadMax,
		LineMax:  cfg.Drain.LineMax,
		Mode:     cfg.Drain.Mode,
	}
}

type drainSession interface {
	Start() error
	Detach(ctx context.Context) error
}

// startSession starts draining, detaching again if that fails.
func startSession(sess drainSession) error {
	err := sess.Start()
	if err == nil {
		return nil
	}
	if derr := sess.Detach(context.Background()); derr != nil {
		return multierror.Append(fmt.Errorf("failed to start drain: %w", err), derr)
	}
	return fmt.Errorf("failed to start drain: %w", err)
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting teelogd",
		zap.String("version", apihttp.Version),
		zap.String("shm_path", cfg.Shm.Path),
		zap.String("shm_addr", fmt.Sprintf("0x%x", cfg.Shm.Addr)),
		zap.Uint32("shm_size", cfg.Shm.Size),
		zap.Duration("interval", cfg.Drain.Interval),
	)

	metrics := monitoring.NewMetrics()
	sinks, hub, err := buildSinks(cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Warn("Failed to close sinks", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.NewServer(cfg, logger, metrics, hub)
		g.Go(func() error { return srv.Run(ctx) })
	}

	g.Go(func() error {
		sess, err := session.AttachWithRetry(ctx, sessionConfig(cfg),
			&session.StaticNegotiator{},
			session.FileMapper{Path: cfg.Shm.Path},
			sinks,
			cfg.Attach.RetryMaxElapsed,
			session.WithLogger(logger.Logger),
			session.WithMetrics(metrics),
		)
		if err != nil {
			return fmt.Errorf("failed to attach to %s: %w", cfg.Shm.Path, err)
		}
		if err := startSession(sess); err != nil {
			return err
		}
		if srv != nil {
			srv.Handlers().SetSession(sess)
		}

		<-ctx.Done()
		logger.Info("Shutting down gracefully")
		if srv != nil {
			srv.Handlers().SetSession(nil)
		}
		return sess.Detach(context.Background())
	})

	return g.Wait()
}
