// Command quizflow-mcp serves the classroom state and question bank as MCP
// tools over stdio. It opens the state database read-only.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/quizflow/quizflow/internal/config"
	"github.com/quizflow/quizflow/internal/logging"
	"github.com/quizflow/quizflow/internal/mcpserver"
	"github.com/quizflow/quizflow/internal/remote"
	"github.com/quizflow/quizflow/internal/state"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "quizflow-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", filepath.Join(config.DataDir(), "config.json"), "config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(filepath.Join(filepath.Dir(cfg.LogPath), "quizflow-mcp.log"), cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := state.OpenReadOnly(cfg.StatePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, closeDB, err := remote.Open(ctx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer closeDB()

	srv := mcpserver.New(state.NewManager(store, logger), db, cfg.QuestionsPath, logger)
	return server.ServeStdio(srv.MCP())
}
