package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/honganh1206/stargazer/api"
	"github.com/honganh1206/stargazer/config"
	"github.com/honganh1206/stargazer/credential"
	"github.com/honganh1206/stargazer/preview"
	"github.com/honganh1206/stargazer/schema"
)

var (
	verbose bool
	envPath string
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// env bundles what most commands need: configuration, the credential store
// and an API client reading its token from that store.
type env struct {
	cfg    *config.Config
	store  *credential.Store
	client *api.Client
}

func openEnv() (*env, error) {
	cfg, err := config.Load(envPath)
	if err != nil {
		return nil, err
	}

	store, err := credential.Open(cfg.CredentialPath)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:    cfg,
		store:  store,
		client: api.NewClient(cfg.BaseURL, store, api.WithTimeout(cfg.RequestTimeout)),
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// withEnv adapts a handler that needs an env into a cobra RunE.
func withEnv(fn func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd, args, e)
	}
}

func SchemaHandler(cmd *cobra.Command, args []string) error {
	for _, item := range []struct {
		name string
		gen  func() ([]byte, error)
	}{
		{"preview event", schema.JSON[preview.Event]},
		{"preview", schema.JSON[preview.Preview]},
	} {
		out, err := item.gen()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n", item.name, out)
	}
	return nil
}

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stargazer",
		Short: "Find stargazing groups and keep up with their chats",
		Long: `Stargazer is a command line client for stargazing meetup groups.
It browses and manages groups, reads and sends chat messages and keeps a live
list of chat previews with unread counts.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envPath, "env", "./.env", "Path to .env file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of stargazer",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Stargazer version %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		},
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schemas of the preview payloads",
		Args:  cobra.NoArgs,
		RunE:  SchemaHandler,
	}

	rootCmd.AddCommand(
		versionCmd,
		schemaCmd,
		newServeCmd(),
		newUploadCmd(),
		newWatchCmd(),
	)
	rootCmd.AddCommand(newAuthCmds()...)
	rootCmd.AddCommand(newGroupCmds()...)
	rootCmd.AddCommand(newChatCmds()...)

	return rootCmd
}
