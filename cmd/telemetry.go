// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"

	"github.com/cardinalhq/shardstream/internal/logctx"
)

// setupTelemetry installs the default logger and returns a context that is
// cancelled on SIGINT or SIGTERM. Logs go to stderr as text, and also to
// logFile as JSON when it is set.
func setupTelemetry(command, logFile string) (context.Context, func() error, error) {
	doneCtx, doneCancel := handleSignals(context.Background())

	// Configure slog level based on DEBUG environment variables
	var opts *slog.HandlerOptions
	if os.Getenv("DEBUG") != "" || os.Getenv("SHARDSTREAM_DEBUG") != "" {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}

	shutdown := func() error {
		doneCancel()
		return nil
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			doneCancel()
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		handler = slogmulti.Fanout(handler, slog.NewJSONHandler(f, opts))
		shutdown = func() error {
			doneCancel()
			return f.Close()
		}
	}

	logger := slog.New(handler).With(
		slog.String("service", serviceName),
		slog.String("command", command),
	)
	slog.SetDefault(logger)

	return logctx.WithLogger(doneCtx, logger), shutdown, nil
}

// runCommand wraps a command body with logging setup and teardown.
func runCommand(command string, fn func(ctx context.Context) error) error {
	ctx, shutdown, err := setupTelemetry(command, cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(); err != nil {
			slog.Warn("Failed to shut down logging", slog.Any("error", err))
		}
	}()
	return fn(ctx)
}
