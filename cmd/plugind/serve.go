package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lcx/hotplug/announce"
	"github.com/lcx/hotplug/api"
	"github.com/lcx/hotplug/archive"
	"github.com/lcx/hotplug/codec"
	"github.com/lcx/hotplug/config"
	"github.com/lcx/hotplug/container"
	"github.com/lcx/hotplug/log"
	"github.com/lcx/hotplug/metrics"
	"github.com/lcx/hotplug/plugin"
	"github.com/lcx/hotplug/resolver"
	"github.com/lcx/hotplug/route"
)

type serveOptions struct {
	addr         string
	workDir      string
	codec        string
	shutdownWait time.Duration
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the plugin host",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.workDir, "work-dir", "", "directory for extracted plugin libraries (default: system temp)")
	cmd.Flags().StringVar(&opts.codec, "announce-codec", "json", "consul payload codec: json or proto")
	cmd.Flags().DurationVar(&opts.shutdownWait, "shutdown-timeout", 15*time.Second, "graceful shutdown timeout")
	return cmd
}

// existing keeps the files that exist.
func existing(files []string) []string {
	var out []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func serve(parent context.Context, opts *serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dotenv := existing(envFiles)
	if len(dotenv) > 0 {
		if err := godotenv.Load(dotenv...); err != nil {
			return fmt.Errorf("load env files: %w", err)
		}
	}

	cm := config.GetInstance()
	cm.SetBasePath(configDir)
	cm.SetEnvironment(envName)
	defer cm.Close()
	if err := log.Initialize(cm); err != nil {
		return err
	}
	defer func() { _ = log.Default().Sync() }()
	cm.SetErrorHandler(func(name string, err error) {
		log.Error().Err(err).Str("config", name).Msg("config reload failed")
	})

	props, err := plugin.LoadProperties(cm)
	if err != nil {
		return err
	}

	host, _ := os.Hostname()
	collectors, err := metrics.New(metrics.Dimension{"host": host})
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	lookups := []resolver.Lookup{resolver.Env()}
	if v, err := cm.Viper(plugin.PropertiesName); err == nil {
		lookups = append(lookups, resolver.Viper(v))
	}
	if len(dotenv) > 0 {
		l, err := resolver.Dotenv(dotenv...)
		if err != nil {
			return fmt.Errorf("read env files: %w", err)
		}
		lookups = append(lookups, l)
	}

	table := route.NewTable(route.WithRecorder(collectors))
	app, err := plugin.NewApplication(
		archive.NewReader(opts.workDir),
		container.New(),
		table,
		props,
		plugin.WithResolver(resolver.New(resolver.Chain(lookups...))),
		plugin.WithRecorder(collectors),
	)
	if err != nil {
		return err
	}
	cm.AddChangeListener(app)

	if props.Consul.Enabled {
		c, err := codec.ByName(opts.codec)
		if err != nil {
			return err
		}
		a, err := announce.New(props.Consul, c)
		if err != nil {
			return err
		}
		app.AddListener(a)
		log.Info().Str("consul", props.Consul.Address).Str("prefix", props.Consul.Prefix).Msg("announcing plugin state")
	}

	if err := app.Init(ctx); err != nil {
		return err
	}

	if props.Watch {
		w, err := plugin.NewWatcher(app, props.Path, 0)
		if err != nil {
			return fmt.Errorf("watch %s: %w", props.Path, err)
		}
		defer w.Close()
		go w.Run(ctx)
		log.Info().Str("dir", props.Path).Msg("watching plugin dir")
	}

	srv := api.NewServer(opts.addr, app, table, api.WithMetrics(collectors.Handler()))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownWait)
	defer cancel()
	return errors.Join(err, srv.Stop(shutdownCtx), app.StopAll(shutdownCtx))
}
