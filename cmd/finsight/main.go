package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yanmxa/finsight/internal/chat"
	"github.com/yanmxa/finsight/internal/config"
	"github.com/yanmxa/finsight/internal/log"
	"github.com/yanmxa/finsight/internal/resolver"
	"github.com/yanmxa/finsight/internal/session"
	"github.com/yanmxa/finsight/internal/tool"
)

var version = "0.1.0"

func init() {
	// Load .env file if it exists (silent fail if not found)
	_ = godotenv.Load()
}

func main() {
	defer func() { _ = log.Sync() }()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "Finsight - conversational finance assistant",
	Long: `Finsight answers finance questions with live market, filing and
economic data. It runs as an HTTP backend or answers directly in the terminal.

  finsight serve               Start the HTTP server
  finsight ask "question"      Answer one question
  echo "question" | finsight ask
  finsight card AAPL           Generate a summary card`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("finsight version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, askCmd, cardCmd, versionCmd)
}

// app holds the wired components shared by every command.
type app struct {
	cfg   *config.Config
	store session.Store
	svc   *chat.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := log.Init(cfg.Log); err != nil {
		return nil, err
	}

	store, err := session.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	svc := chat.NewService(cfg,
		resolver.New(cfg, resolver.DefaultRegistry()),
		session.NewAdapter(store),
		tool.Default(cfg.Tools),
	)
	return &app{cfg: cfg, store: store, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.LogError("store", err)
	}
}
