package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HendryAvila/sparkle/internal/acp"
	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/HendryAvila/sparkle/internal/embodiment"
	"github.com/HendryAvila/sparkle/internal/journal"
	"github.com/HendryAvila/sparkle/internal/proxy"
	sparkleserver "github.com/HendryAvila/sparkle/internal/server"
	"github.com/HendryAvila/sparkle/internal/templates"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [-- agent command...]",
		Short: "Serve Sparkle over stdio",
		Long: `Without --acp, serve the Sparkle MCP tools over stdio.

With --acp, act as an ACP proxy: sparkle speaks ACP with the editor on
stdio, launches the agent command given after "--" (or SPARKLE_AGENT), and
embodies every new session before its first prompt reaches the agent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := sparkleHome(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(v, home)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if v.GetBool(keyACP) {
				return runProxy(cmd.Context(), v, home, agentCommand(v, args), logger)
			}
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments %q (an agent command needs --acp)", args)
			}
			return runServer(v, home, logger)
		},
	}

	flags := cmd.Flags()
	flags.Bool(keyACP, false, "run as an ACP proxy in front of an agent")
	flags.String(keyWorkspace, "", "workspace for embodiment (default: the session's cwd)")
	flags.String(keySparkler, "", "sparkler to embody (default: the configured default)")
	flags.Bool(keyProvideTools, false, "offer the sparkle MCP tools to the agent on session/new")
	flags.Bool(keyProxied, false, "tool server launched by the ACP proxy")
	_ = flags.MarkHidden(keyProxied)
	bindFlags(v, flags, keyACP, keyWorkspace, keySparkler, keyProvideTools, keyProxied)

	return cmd
}

// agentCommand returns the agent argv: the arguments after "--", else the
// whitespace-separated SPARKLE_AGENT setting.
func agentCommand(v *viper.Viper, args []string) []string {
	if len(args) > 0 {
		return args
	}
	return strings.Fields(v.GetString(keyAgent))
}

func runServer(v *viper.Viper, home string, logger *zap.Logger) error {
	s, cleanup, err := sparkleserver.New(sparkleserver.Options{
		Root:     home,
		Proxied:  v.GetBool(keyProxied),
		Sparkler: v.GetString(keySparkler),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	logger.Debug("serving MCP over stdio", zap.String("home", home))
	return server.ServeStdio(s)
}

func runProxy(ctx context.Context, v *viper.Viper, home string, argv []string, logger *zap.Logger) error {
	if len(argv) == 0 {
		return errors.New("--acp needs an agent command after -- or in SPARKLE_AGENT")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := config.NewFileStore(home)
	renderer, err := templates.NewRenderer()
	if err != nil {
		return fmt.Errorf("creating template renderer: %w", err)
	}
	assembler := embodiment.NewAssembler(store, renderer, logger.Named("embodiment"))

	cfg := proxy.Config{
		Workspace: v.GetString(keyWorkspace),
		Sparkler:  v.GetString(keySparkler),
		Logger:    logger,
	}

	// The journal is best-effort: without it sessions are still embodied.
	j, err := journal.New(journal.DefaultConfig(home))
	if err != nil {
		logger.Warn("embodiment journal disabled", zap.Error(err))
	} else {
		defer func() { _ = j.Close() }()
		cfg.Observer = proxy.NewJournalBridge(j, logger.Named("journal"))
	}

	if v.GetBool(keyProvideTools) {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locating sparkle executable: %w", err)
		}
		cfg.Tools = toolServer(exe, home, cfg.Sparkler)
	}

	agent, err := proxy.StartAgent(ctx, argv, logger.Named("agent"))
	if err != nil {
		return err
	}

	client := acp.NewConn("client", os.Stdin, os.Stdout, logger.Named("acp"))
	successor := acp.NewConn("agent", agent.Stdout, agent.Stdin, logger.Named("acp"))

	runErr := proxy.New(client, successor, assembler, cfg).Run(ctx)
	waitErr := agent.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if waitErr != nil && ctx.Err() == nil {
		logger.Warn("agent exit", zap.Error(waitErr))
	}
	return nil
}

// toolServer describes this binary as a proxied MCP tool server, in the
// shape ACP clients pass in session/new mcpServers.
func toolServer(exe, home, sparkler string) *acp.McpServer {
	args := []string{"serve", "--" + keyProxied, "--" + keyHome, home}
	if sparkler != "" {
		args = append(args, "--"+keySparkler, sparkler)
	}
	return &acp.McpServer{
		Name:    "sparkle",
		Command: exe,
		Args:    args,
		Env:     []acp.EnvVariable{},
	}
}
