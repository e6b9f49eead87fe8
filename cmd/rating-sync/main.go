// Command rating-sync runs one rating sync for a tag and prints the result
// as JSON. It is meant for operators and external schedulers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tappo/tappo/internal/apperr"
	"github.com/tappo/tappo/internal/config"
	"github.com/tappo/tappo/internal/database"
	"github.com/tappo/tappo/internal/httpserver"
	"github.com/tappo/tappo/internal/middleware"
	"github.com/tappo/tappo/internal/reviews"
	"go.uber.org/zap"
)

type output struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	*reviews.Result
}

func main() {
	tagID := flag.String("tag", "", "NFC tag id")
	userID := flag.String("user", "", "owner user id")
	flag.Parse()

	if *tagID == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: rating-sync -tag <id> -user <id>")
		os.Exit(2)
	}

	os.Exit(run(*tagID, *userID))
}

func run(tagID, userID string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	// stdout carries the JSON result
	logger, err := middleware.NewLogger(cfg.Log.Level, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg.Redis.Enabled = false
	conns := database.Open(ctx, cfg, logger)
	defer conns.Close()
	if conns.Postgres == nil {
		logger.Error("rating-sync needs PostgreSQL to read and update tags")
		return 1
	}

	deps, err := httpserver.NewDependencies(cfg, conns, nil, nil, logger)
	if err != nil {
		logger.Error("failed to build services", zap.Error(err))
		return 1
	}
	defer deps.Geo.Close()

	res, err := deps.Sync.Sync(ctx, tagID, userID)
	out := output{OK: err == nil, Result: res}
	if err != nil {
		out.Error = err.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)

	if err != nil {
		logger.Warn("rating sync failed", zap.String("code", apperr.CodeOf(err)), zap.Error(err))
		return 1
	}
	return 0
}
