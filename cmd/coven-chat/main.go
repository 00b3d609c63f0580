// ABOUTME: Entry point for the coven-chat terminal client
// ABOUTME: Cobra commands for the interactive chat, conversation listing, export and health checks

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-chat/internal/client"
	"github.com/2389/coven-chat/internal/config"
	"github.com/2389/coven-chat/internal/conversation"
	"github.com/2389/coven-chat/internal/export"
	"github.com/2389/coven-chat/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the chat config file.
// Priority: COVEN_CHAT_CONFIG env var > XDG_CONFIG_HOME/coven/chat.yaml > ~/.config/coven/chat.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_CHAT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "chat.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "chat.yaml")
}

// globalFlags are shared by every command
type globalFlags struct {
	configPath string
	server     string
	logLevel   string
}

// app holds the wired components for one command invocation
type app struct {
	cfg           *config.Config
	logger        *slog.Logger
	store         store.Store
	conversations *conversation.Manager
	client        *client.Client
}

func (a *app) Close() error {
	return a.store.Close()
}

// loadConfig reads the config file. A missing file at the default location
// means defaults; an explicitly requested file must exist.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	path := flags.configPath
	explicit := path != ""
	if !explicit {
		path = getConfigPath()
	}

	cfg, err := config.Load(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, os.ErrNotExist):
		cfg = config.Default()
	default:
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if flags.server != "" {
		cfg.Server.BaseURL = flags.server
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// newApp loads configuration and opens storage.
func newApp(ctx context.Context, flags *globalFlags, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging, logOut)
	slog.SetDefault(logger)

	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	return &app{
		cfg:           cfg,
		logger:        logger,
		store:         st,
		conversations: conversation.New(ctx, st, conversation.WithLogger(logger)),
		client: client.New(cfg.Server.BaseURL,
			client.WithStreamPath(cfg.Server.StreamPath),
			client.WithHealthPath(cfg.Server.HealthPath),
			client.WithOpenTimeout(cfg.Server.RequestTimeout),
			client.WithLogger(logger),
		),
	}, nil
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "coven-chat",
		Short:         "Chat with a streaming assistant from the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), flags, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (YAML or TOML)")
	root.PersistentFlags().StringVar(&flags.server, "server", "", "Assistant service base URL (overrides config)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		&cobra.Command{
			Use:   "chat",
			Short: "Start an interactive chat session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runChat(cmd.Context(), flags, cmd.InOrStdin(), cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List saved conversations grouped by recency",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runList(cmd.Context(), flags, cmd.OutOrStdout())
			},
		},
		newExportCommand(flags),
		&cobra.Command{
			Use:   "health",
			Short: "Check assistant service health",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runHealth(cmd.Context(), flags, cmd.OutOrStdout())
			},
		},
	)

	return root
}

func newExportCommand(flags *globalFlags) *cobra.Command {
	var formatName, output string

	cmd := &cobra.Command{
		Use:   "export [conversation-id]",
		Short: "Export a conversation as Markdown or HTML (default: current)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runExport(cmd.Context(), flags, id, format, output, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", "markdown", "Output format: markdown or html")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file, or into a directory as chat-<id>.<ext>, instead of stdout")
	return cmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func runList(ctx context.Context, flags *globalFlags, out io.Writer) error {
	a, err := newApp(ctx, flags, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	printGroups(out, a.conversations.GroupByRecency(timeNow()), a.conversations.CurrentID())
	return nil
}

func runExport(ctx context.Context, flags *globalFlags, id string, format export.Format, output string, out io.Writer) error {
	a, err := newApp(ctx, flags, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if id == "" {
		id = a.conversations.CurrentID()
	} else if id, err = resolveConversation(flatten(a.conversations.GroupByRecency(timeNow())), id); err != nil {
		return err
	}
	conv, err := a.conversations.Get(id)
	if err != nil {
		return fmt.Errorf("conversation %s: %w", id, err)
	}

	return writeExport(conv, format, output, out)
}

// writeExport renders conv to output, or to out when output is empty. An
// existing directory gets a file named after the conversation.
func writeExport(conv store.Conversation, format export.Format, output string, out io.Writer) error {
	if output == "" {
		return export.Write(out, conv, format)
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		output = filepath.Join(output, exportFileName(conv, format))
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := export.Write(f, conv, format); err != nil {
		f.Close()
		return fmt.Errorf("writing export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing export file: %w", err)
	}
	fmt.Fprintf(out, "Exported %q to %s\n", conv.Title, output)
	return nil
}

// exportFileName is the default file name for an exported conversation.
func exportFileName(conv store.Conversation, format export.Format) string {
	return "chat-" + shortID(conv.ID) + format.Extension()
}

func runHealth(ctx context.Context, flags *globalFlags, out io.Writer) error {
	a, err := newApp(ctx, flags, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if !status.Healthy() {
		return fmt.Errorf("unhealthy: status %q", status.Status)
	}

	fmt.Fprintln(out, color.GreenString("healthy"))
	fmt.Fprintf(out, "  service: %s\n", a.client.BaseURL())
	if status.Version != "" {
		fmt.Fprintf(out, "  version: %s\n", status.Version)
	}
	if status.AutogenVersion != "" {
		fmt.Fprintf(out, "  autogen: %s\n", status.AutogenVersion)
	}
	if status.ModelStatus != "" {
		fmt.Fprintf(out, "  model:   %s\n", status.ModelStatus)
	}
	return nil
}
