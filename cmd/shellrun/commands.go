package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/deixis/shellrun"
	"github.com/deixis/shellrun/internal/config"
	"github.com/deixis/shellrun/internal/logging"
	shellmcp "github.com/deixis/shellrun/internal/mcp"
	"github.com/deixis/shellrun/internal/platform"
	"github.com/deixis/shellrun/internal/report"
	"github.com/deixis/shellrun/internal/runner"
)

var errUsage = errors.New("usage")

// options are the persistent flags shared by every subcommand.
type options struct {
	timeout  time.Duration
	logLevel string
	dir      string
}

func (o *options) register(fs *pflag.FlagSet) {
	fs.DurationVar(&o.timeout, "timeout", 0, "kill the command after this long (default from .shellrun, else 30s)")
	fs.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVarP(&o.dir, "dir", "C", "", "run commands in this directory")
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "shellrun",
		Short:         "Run shell commands with a timeout and capture their output",
		Version:       shellrun.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.register(root.PersistentFlags())

	root.AddCommand(
		newRunCommand(opts),
		newCodeCommand(opts),
		newOKCommand(opts),
		newInspectCommand(opts),
		newMCPCommand(opts),
	)
	return root
}

func newRunCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <command...>",
		Short: "Run a command, print its output and exit with its exit code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer env.close()

			res, err := runner.Collect(cmd.Context(), env.runner, strings.Join(args, " "), runner.NewTextResult)
			if err != nil {
				return err
			}
			if res.Output != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.Output)
			}
			if res.Error != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), res.Error)
			}
			if res.ExitCode != 0 {
				return exitStatus(res.ExitCode)
			}
			return nil
		},
	}
	// Flags after the command belong to the command.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newCodeCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code <command...>",
		Short: "Run a command and print its exit code; stderr output is a failure",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer env.close()

			code, err := env.runner.ExitCode(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newOKCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ok <command...>",
		Short: "Run a command and print true if it exits with code 0",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer env.close()

			ok, err := env.runner.Succeeds(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newInspectCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <run-id>",
		Short: "Show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer env.close()

			record, err := env.store.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Format(record))
			return nil
		},
	}
}

func newMCPCommand(opts *options) *cobra.Command {
	var (
		instructions bool
		httpAddr     string
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio or HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), shellmcp.Instructions)
				return nil
			}

			env, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer env.close()

			server := shellmcp.NewServer(env.runner, env.store)
			if httpAddr != "" {
				return serveHTTP(cmd.Context(), server, httpAddr, env.log)
			}
			return server.Run(cmd.Context(), &mcpsdk.StdioTransport{})
		},
	}
	cmd.Flags().BoolVar(&instructions, "instructions", false, "print model instructions and exit")
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address (e.g. :9090)")
	return cmd
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string, log *zap.Logger) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Info("listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// env is the wiring shared by subcommands.
type env struct {
	runner *runner.Runner
	store  report.Store
	log    *zap.Logger
}

func (e *env) close() {
	_ = e.log.Sync()
}

func newEnv(opts *options) (*env, error) {
	dir := opts.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining working directory: %w", err)
		}
		dir = wd
	}

	loaded, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	level := cfg.LogLevel()
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	log, err := logging.NewLogger(level, cfg.LogFormat())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	timeout := cfg.Timeout()
	if opts.timeout > 0 {
		timeout = opts.timeout
	}

	historyDir := cfg.HistoryDir
	if historyDir == "" {
		historyDir = defaultHistoryDir()
	}
	store := report.NewLRUStore(cfg.History(), report.NewDiskStore(historyDir))

	return &env{
		runner: &runner.Runner{
			Timeout: timeout,
			Dir:     opts.dir,
			Resolver: &platform.Resolver{
				Shell:      cfg.Shell,
				CacheProbe: cfg.CacheProbe,
			},
			Logger: log,
			Store:  store,
		},
		store: store,
		log:   log,
	}, nil
}

// defaultHistoryDir is a per-user cache directory so inspect works across
// invocations. An empty result falls back to a temp directory.
func defaultHistoryDir() string {
	cache, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(cache, "shellrun", "runs")
}
