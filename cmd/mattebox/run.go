// cmd/mattebox/run.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/mattebox/internal/assoc"
	"github.com/tamzrod/mattebox/internal/config"
	"github.com/tamzrod/mattebox/internal/datalog"
	"github.com/tamzrod/mattebox/internal/diag"
	"github.com/tamzrod/mattebox/internal/display"
	"github.com/tamzrod/mattebox/internal/events"
	"github.com/tamzrod/mattebox/internal/export"
	"github.com/tamzrod/mattebox/internal/export/modbus"
	"github.com/tamzrod/mattebox/internal/logging"
	"github.com/tamzrod/mattebox/internal/machine"
	"github.com/tamzrod/mattebox/internal/nvm"
	"github.com/tamzrod/mattebox/internal/reconcile"
	"github.com/tamzrod/mattebox/internal/sensor"
)

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, closeLog, err := logging.New(logOptions(cfg.Log))
	if err != nil {
		return err
	}
	defer closeLog()

	log = log.With(zap.String("box_id", cfg.Box.ID))
	log.Info("configuration loaded",
		zap.String("nvm", cfg.NVM.Path),
		zap.String("sensor", cfg.Sensor.Source),
		zap.String("datalog", cfg.Datalog.Root),
		zap.Duration("interval", cfg.Cycle.Interval()),
	)

	// --------------------
	// Association store
	// --------------------

	mem, closeMem, err := openMemory(cfg.NVM)
	if err != nil {
		return err
	}
	defer closeMem()

	store, err := assoc.New(mem)
	if err != nil {
		return err
	}
	if names, uids, err := store.Counts(); err != nil {
		// Lookups will raise the store fault until formatted.
		log.Warn("association store unreadable; run 'mattebox assoc format' to initialise",
			zap.Error(err))
	} else {
		log.Info("association store ready",
			zap.Uint16("names", names),
			zap.Uint16("uids", uids),
		)
	}

	var resolver reconcile.Resolver
	if cfg.Sensor.LegacyLookup {
		resolver = store
	}

	// --------------------
	// Event producers
	// --------------------

	flags := &events.Flags{}
	buttons := events.NewButtons(flags, time.Duration(cfg.Buttons.LongPressMs)*time.Millisecond)
	media := events.NewMediaDetect(flags, time.Duration(cfg.Buttons.MediaDebounceMs)*time.Millisecond)
	defer media.Stop()

	tags, watch, closeSensor, err := openSensor(cfg.Sensor, log.Named("sensor"))
	if err != nil {
		return err
	}
	defer closeSensor()

	// --------------------
	// Datalog
	// --------------------

	card := datalog.NewCard(cfg.Datalog.Root, cfg.Box.ID, log.Named("datalog"))
	recorders := datalog.Multi{card}

	var history *datalog.History
	if cfg.Datalog.HistoryPath != "" {
		history, err = datalog.OpenHistory(cfg.Datalog.HistoryPath, cfg.Box.ID)
		if err != nil {
			return err
		}
		defer history.Close()
		recorders = append(recorders, history)
		log.Info("history enabled",
			zap.String("path", cfg.Datalog.HistoryPath),
			zap.String("session", history.Session()),
		)
	}

	// --------------------
	// Status export (optional)
	// --------------------

	var sink machine.StatusSink
	if e := cfg.Export; e != nil {
		client, err := modbus.NewEndpointClient(modbus.Config{
			Endpoint: e.Endpoint,
			Timeout:  time.Duration(e.TimeoutMs) * time.Millisecond,
		})
		if err != nil {
			return fmt.Errorf("export client: %w", err)
		}
		defer client.Close()

		w, err := export.NewStatusWriter(export.Plan{
			Endpoint: e.Endpoint,
			UnitID:   e.UnitID,
			BaseSlot: e.BaseSlot,
		}, client)
		if err != nil {
			return fmt.Errorf("export plan: %w", err)
		}
		sink = w
	}

	// --------------------
	// Controller
	// --------------------

	m := machine.New(machine.Config{
		Interval:       cfg.Cycle.Interval(),
		ReorderTimeout: cfg.Cycle.ReorderTimeout(),
	}, machine.Deps{
		Sensor:   tags,
		Engine:   reconcile.New(resolver, log.Named("reconcile")),
		Flags:    flags,
		Display:  display.NewTerminal(os.Stdout, cfg.Box.ID),
		Recorder: recorders,
		Media:    card,
		Status:   sink,
		Log:      log.Named("machine"),
	})

	// A card present at boot is an insertion edge.
	if info, err := os.Stat(cfg.Datalog.Root); err == nil && info.IsDir() {
		media.Edge(true)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return m.Run(gctx) })
	if watch != nil {
		g.Go(func() error {
			// Without a watch the file is still read on first acquire.
			if err := watch(gctx); err != nil {
				log.Warn("tag file watch disabled", zap.Error(err))
			}
			return nil
		})
	}

	if cfg.Diag.Address != "" {
		d := diag.Deps{
			Controller: m,
			Flags:      flags,
			Buttons:    buttons,
			Media:      media,
			Store:      store,
			Log:        log.Named("diag"),
		}
		if history != nil {
			d.History = history
		}
		router := diag.NewRouter(d)
		g.Go(func() error { return diag.Serve(gctx, cfg.Diag.Address, router, log.Named("diag")) })
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("controller exited", zap.Error(err))
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func logOptions(c config.LogConfig) logging.Options {
	return logging.Options{
		Level:      c.Level,
		Encoding:   c.Encoding,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	}
}

// openSensor builds the configured tag source. watch is nil for sources
// that need no background goroutine.
func openSensor(c config.SensorConfig, log *zap.Logger) (machine.Sensor, func(context.Context) error, func() error, error) {
	switch c.Source {
	case "reader":
		client, err := modbus.NewEndpointClient(modbus.Config{
			Endpoint: c.Reader.Endpoint,
			Timeout:  time.Duration(c.Reader.TimeoutMs) * time.Millisecond,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reader client: %w", err)
		}
		r, err := sensor.NewReader(sensor.ReaderConfig{
			UnitID:  c.Reader.UnitID,
			Address: c.Reader.Address,
			Legacy:  c.LegacyLookup,
		}, client)
		if err != nil {
			client.Close()
			return nil, nil, nil, err
		}
		log.Info("sensing from tag reader", zap.String("endpoint", c.Reader.Endpoint))
		return r, nil, client.Close, nil

	default:
		f := sensor.NewFile(c.Path, c.LegacyLookup, log)
		log.Info("sensing from tag file", zap.String("path", c.Path))
		return f, f.Watch, func() error { return nil }, nil
	}
}

// openMemory opens the device image behind the page-write wrapper.
func openMemory(c config.NVMConfig) (nvm.Memory, func() error, error) {
	f, err := nvm.OpenFile(c.Path, c.Size)
	if err != nil {
		return nil, nil, err
	}
	paged := nvm.NewPaged(f, c.PageSize, time.Duration(c.WriteDelayMs)*time.Millisecond)
	return paged, f.Close, nil
}
