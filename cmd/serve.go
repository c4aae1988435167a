package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/honganh1206/stargazer/app/lifecycle"
	"github.com/honganh1206/stargazer/config"
	"github.com/honganh1206/stargazer/server"
)

func RunServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envPath)
	if err != nil {
		return err
	}

	ctx, cancel := lifecycle.WithSignals(cmd.Context())
	defer cancel()

	if lifecycle.IsServerRunning(ctx, cfg.Server.PublicURL) {
		return fmt.Errorf("a stargazer server is already running at %s", cfg.Server.PublicURL)
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return err
	}

	go announceReady(ctx, localURL(ln.Addr()), cfg.Server.PublicURL)

	err = server.Serve(ctx, ln, cfg.Server, slog.Default())
	slog.Info("stargazer server exiting")
	return err
}

// localURL is a URL for reaching addr from this machine.
func localURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func announceReady(ctx context.Context, probeURL, publicURL string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := lifecycle.WaitReady(ctx, probeURL); err != nil {
		slog.Warn("dev server did not answer health checks", "url", probeURL, "err", err)
		return
	}
	slog.Info("stargazer server ready", "url", publicURL)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the development backend",
		Args:  cobra.NoArgs,
		RunE:  RunServer,
	}
}
