package main

import (
	"fmt"

	"github.com/GriffinCanCode/teelog/internal/infrastructure/config"
	"github.com/GriffinCanCode/teelog/internal/infrastructure/logging"
	"github.com/GriffinCanCode/teelog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/teelog/internal/shmlog"
	"github.com/GriffinCanCode/teelog/internal/sink"
	"github.com/GriffinCanCode/teelog/internal/ws"
)

// buildSinks assembles the fan-out. The logger sink is always first. The
// hub is returned separately so the server can mount it.
func buildSinks(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) (*sink.Multi, *ws.Hub, error) {
	sinks := []shmlog.Sink{sink.NewLogger(logger.Logger)}
	fail := func(err error) (*sink.Multi, *ws.Hub, error) {
		sink.NewMulti(sinks...).Close()
		return nil, nil, err
	}

	if cfg.Sinks.File != "" {
		f, err := sink.NewFile(sink.FileConfig{
			Path:       cfg.Sinks.File,
			MaxSizeMB:  cfg.Sinks.FileMaxMB,
			MaxBackups: cfg.Sinks.FileBackups,
			Compress:   true,
		})
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, f)
	}

	if cfg.Sinks.Archive != "" {
		a, err := sink.NewArchive(cfg.Sinks.Archive)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, a)
	}

	if cfg.Sinks.RemoteURL != "" {
		r, err := sink.NewRemote(sink.DefaultRemoteConfig(cfg.Sinks.RemoteURL), logger.Logger)
		if err != nil {
			return fail(fmt.Errorf("failed to create remote sink: %w", err))
		}
		sinks = append(sinks, r)
	}

	var hub *ws.Hub
	if cfg.Sinks.Tail && cfg.Server.Enabled {
		hub = ws.NewHub(logger.Logger, metrics)
		sinks = append(sinks, hub)
	}

	return sink.NewMulti(sinks...), hub, nil
}
