package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/rankflow/internal/cliconfig"
	"github.com/bft-labs/rankflow/internal/sink"
	"github.com/bft-labs/rankflow/internal/source"
	"github.com/bft-labs/rankflow/pkg/log"
	"github.com/bft-labs/rankflow/pkg/rankflow"
)

const helpDescription = `
Rolling Spearman rank correlation over live multi-channel streams.

rankflow joins an NMC data server (or tails a text file of samples) and,
after every window of rows, prints the correlation magnitude of every channel
pair as one JSON line. The per-pair kernel runs on the GPU when one is present.

Configuration is read from $HOME/.rankflow/config.toml, then RANKFLOW_*
environment variables, then flags; later sources win.
`

var exampleUsage = strings.TrimSpace(`
  rankflow --host 192.168.0.10 --port 4000 --window 32
  rankflow --mode file --file input.txt --follow --listen :8080
  rankflow gen --file input.txt --number 3 --sleep 100ms
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func versionString() string {
	return fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH)
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		logger := cliconfig.Logger()
		logger.Error().Err(err).Msg("rankflow")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	run := func(cmd *cobra.Command, _ []string) error {
		return runEngine(cmd, &cfg, cfgPath)
	}

	root := &cobra.Command{
		Use:           "rankflow",
		Short:         "Rolling Spearman rank correlation over live multi-channel streams",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	bindRunFlags(root.Flags(), &cfg, &cfgPath)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Compute correlations (default command)",
		RunE:  run,
	}
	bindRunFlags(runCmd.Flags(), &cfg, &cfgPath)

	root.AddCommand(runCmd, newGenCommand(), newVersionCommand())
	return root
}

func bindRunFlags(fs *pflag.FlagSet, cfg *cliconfig.Config, cfgPath *string) {
	fs.StringVar(cfgPath, "config", "", "path to config file (default: $HOME/.rankflow/config.toml)")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "input mode: net or file")
	fs.IntVarP(&cfg.Window, "window", "w", cfg.Window, "rows per correlation window (at least 2)")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "compute backend: auto, cpu, gpu or emulated")

	fs.StringVar(&cfg.Host, "host", cfg.Host, "NMC data server host")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "NMC data server port")
	fs.StringVar(&cfg.ClientName, "client-name", cfg.ClientName, "name registered with the data server")
	fs.IntVar(&cfg.OverflowRate, "overflow-rate", cfg.OverflowRate, "queued rows per window above which input is decimated")
	fs.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "row queue capacity")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "connect timeout")
	fs.BoolVar(&cfg.Reconnect, "reconnect", cfg.Reconnect, "reconnect with backoff after the server goes away")
	fs.IntVar(&cfg.MaxReconnects, "max-reconnects", cfg.MaxReconnects, "consecutive reconnect attempts (0 = unlimited)")

	fs.StringVarP(&cfg.File, "file", "f", cfg.File, "input file in file mode")
	fs.BoolVar(&cfg.Follow, "follow", cfg.Follow, "keep reading as the file grows")
	fs.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "poll interval when following without change events")
	fs.BoolVar(&cfg.Resume, "resume", cfg.Resume, "continue from the saved checkpoint")
	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for status.json checkpoints (file mode)")

	fs.StringVarP(&cfg.Output, "output", "o", cfg.Output, "JSON lines output: - for stdout, a path, or none")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address for /ws, /metrics, /healthz and /latest")
	fs.StringVar(&cfg.WebhookURL, "webhook-url", cfg.WebhookURL, "POST every result to this URL")
	fs.StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "bearer token for the webhook")
	fs.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "webhook HTTP timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
}

func loadConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) error {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}

	// Env overrides the file; set flags override both.
	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}
	return cfg.Validate()
}

func runEngine(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) error {
	if err := loadConfig(cmd, cfg, cfgPath); err != nil {
		return err
	}
	cliconfig.SetLevel(cfg.LogLevel)
	zl := cliconfig.Logger()

	logCfg := *cfg
	if len(logCfg.AuthKey) > 0 {
		logCfg.AuthKey = "*****"
	}
	zl.Info().Interface("config", logCfg).Msg("configuration")

	opts := []rankflow.Option{rankflow.WithLogger(log.NewZerologAdapterWithLogger(zl))}
	out, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}
	if out != nil {
		opts = append(opts, rankflow.WithSink(out))
	}

	rf, err := rankflow.New(rankflow.Config{
		Mode:          cfg.Mode,
		Window:        cfg.Window,
		Host:          cfg.Host,
		Port:          cfg.Port,
		ClientName:    cfg.ClientName,
		OverflowRate:  cfg.OverflowRate,
		QueueCapacity: cfg.QueueCapacity,
		DialTimeout:   cfg.DialTimeout,
		Reconnect:     cfg.Reconnect,
		MaxReconnects: cfg.MaxReconnects,
		File:          cfg.File,
		Follow:        cfg.Follow,
		PollInterval:  cfg.PollInterval,
		StateDir:      cfg.StateDir,
		Resume:        cfg.Resume,
		Backend:       cfg.Backend,
		Listen:        cfg.Listen,
		WebhookURL:    cfg.WebhookURL,
		AuthKey:       cfg.AuthKey,
		HTTPTimeout:   cfg.HTTPTimeout,
	}, opts...)
	if err != nil {
		if out != nil {
			_ = out.Close()
		}
		return fmt.Errorf("create rankflow: %w", err)
	}
	defer rf.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rf.Start(ctx); err != nil {
		return fmt.Errorf("start rankflow: %w", err)
	}
	zl.Info().Str("backend", rf.Backend()).Str("mode", cfg.Mode).Msg("rankflow started")

	err = rf.Wait(ctx)
	if errors.Is(err, context.Canceled) {
		zl.Info().Msg("received signal, stopping...")
		if err := rf.Stop(); err != nil && !errors.Is(err, rankflow.ErrNotRunning) {
			return fmt.Errorf("stop rankflow: %w", err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	zl.Info().Uint64("results", rf.Results()).Msg("input exhausted")
	return nil
}

func openOutput(target string) (rankflow.Sink, error) {
	switch target {
	case "none":
		return nil, nil
	case "-", "":
		return sink.NewWriter(os.Stdout), nil
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return sink.NewWriteCloser(f), nil
}

func newGenCommand() *cobra.Command {
	var (
		path   string
		number int
		sleep  time.Duration
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Append lines of random samples to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if number < 1 {
				return fmt.Errorf("number must be at least 1")
			}
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("error while open %s: %w", path, err)
			}
			defer f.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g := &source.Generator{Channels: number, Sleep: sleep, Limit: limit}
			n, err := g.Run(ctx, f)
			zl := cliconfig.Logger()
			if errors.Is(err, context.Canceled) {
				zl.Info().Int("lines", n).Msg("generation concluded by user")
				return nil
			}
			if err != nil {
				return err
			}
			zl.Info().Int("lines", n).Msg("generation finished")
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "path to output file")
	cmd.Flags().IntVarP(&number, "number", "n", 3, "number of values in line")
	cmd.Flags().DurationVar(&sleep, "sleep", time.Second, "pause between lines")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many lines (0 = until interrupted)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "rankflow", versionString())
		},
	}
}
