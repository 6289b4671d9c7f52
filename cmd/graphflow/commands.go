package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/graphflow/bootstrap"
	"github.com/kbukum/graphflow/config"
	"github.com/kbukum/graphflow/graph"
	"github.com/kbukum/graphflow/logger"
	"github.com/kbukum/graphflow/registry"
	"github.com/kbukum/graphflow/server"
	"github.com/kbukum/graphflow/service"
	"github.com/kbukum/graphflow/version"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           version.Name,
		Short:         "Build, visualize and run workflow graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default: search ./config.yml, ./config/config.yml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", ".env file to load before reading the environment")

	root.AddCommand(
		newServeCmd(opts),
		newRenderCmd(opts),
		newRunCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration selected by the global flags.
func (o *rootOptions) loadConfig() (*Config, error) {
	var loaderOpts []config.LoaderOption
	if o.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(o.configFile))
	}
	if o.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(o.envFile))
	}
	cfg := &Config{}
	if err := config.LoadConfig(version.Name, cfg, loaderOpts...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var seedDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the graph REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if seedDir != "" {
				cfg.Graphs.SeedDir = seedDir
			}
			return serve(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&seedDir, "seed-dir", "", "directory of graph documents imported at startup")
	return cmd
}

// serve runs the HTTP service until SIGINT or SIGTERM.
func serve(ctx context.Context, cfg *Config, out io.Writer) error {
	app, err := bootstrap.NewApp(cfg, bootstrap.WithOutput(out))
	if err != nil {
		return err
	}
	tel, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	app.OnStop(tel.Shutdown)

	log := logger.GetGlobalLogger()
	svc, graphs := newService(cfg, tel.metrics, log, registryOptions(cfg)...)

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware(tel.metrics)
	srv.RegisterDefaultEndpoints(cfg.Name, app.Components.HealthAll, tel.handler)
	server.NewHandlers(svc).Register(srv.GinEngine())

	if err := app.RegisterComponent(graphs); err != nil {
		return err
	}
	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		return err
	}
	return app.Run(ctx)
}

func registryOptions(cfg *Config) []registry.Option {
	if cfg.Graphs.SeedDir == "" {
		return nil
	}
	return []registry.Option{registry.WithSeedDir(cfg.Graphs.SeedDir)}
}

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Print the structure and stages of a graph document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return render(cmd.Context(), cfg, args[0], asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the graph view as JSON")
	return cmd
}

func render(ctx context.Context, cfg *Config, path string, asJSON bool, out io.Writer) error {
	cfg.ApplyDefaults()
	doc, err := graph.LoadFile(path)
	if err != nil {
		return err
	}
	svc, _ := newService(cfg, nil, logger.Nop())
	created, err := svc.ImportGraph(ctx, doc)
	if err != nil {
		return err
	}
	view, err := svc.GetGraph(ctx, created.GraphID)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, view)
	}
	fmt.Fprint(out, view.Graph)
	if len(view.Stages) > 0 {
		fmt.Fprintln(out, "\nStages:")
		for i, stage := range view.Stages {
			fmt.Fprintf(out, "  %d: %v\n", i, stage)
		}
	}
	return nil
}

type runOptions struct {
	text     string
	provider string
	verbose  bool
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a graph document locally and print the final state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if ro.provider != "" {
				cfg.LLM.Provider = ro.provider
			}
			return runDocument(cmd.Context(), cfg, args[0], ro, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&ro.text, "text", "t", "", "text placed in the initial input")
	cmd.Flags().StringVar(&ro.provider, "provider", "", "override llm.provider (openai, anthropic, echo)")
	cmd.Flags().BoolVarP(&ro.verbose, "verbose", "v", false, "log engine progress")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

// runDocument executes one document inside a task-scoped app so that
// SIGINT cancels the run at the next stage boundary.
func runDocument(ctx context.Context, cfg *Config, path string, ro *runOptions, out io.Writer) error {
	doc, err := graph.LoadFile(path)
	if err != nil {
		return err
	}
	log := logger.Nop()
	if ro.verbose {
		log = logger.NewDefault(version.Name)
	}
	app, err := bootstrap.NewApp(cfg, bootstrap.WithLogger(log), bootstrap.WithoutSummary())
	if err != nil {
		return err
	}
	svc, graphs := newService(cfg, nil, log)
	if err := app.RegisterComponent(graphs); err != nil {
		return err
	}

	return app.RunTask(ctx, func(ctx context.Context) error {
		created, err := svc.ImportGraph(ctx, doc)
		if err != nil {
			return err
		}
		text := ro.text
		resp, runErr := svc.RunGraph(ctx, created.GraphID, service.RunRequest{Text: &text})
		if resp != nil {
			if err := writeJSON(out, resp); err != nil {
				return err
			}
		}
		return runErr
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo().String())
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
