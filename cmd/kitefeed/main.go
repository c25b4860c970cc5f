// kitefeed streams live market data from the Kite WebSocket feed to stdout
// logs. Configuration comes from the environment (optionally a .env file).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zerodha/kitefeed/instruments"
	"github.com/zerodha/kitefeed/ticker"
)

func initLogger() *slog.Logger {
	// Default to INFO level, can be overridden by LOG_LEVEL env var
	// Valid levels: debug, info, warn, error
	var level slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// parseTokens parses KITE_TOKENS entries of the form "408065" or
// "408065:ltp". Entries without a mode default to full.
func parseTokens(raw string) (map[ticker.Mode][]uint32, error) {
	out := make(map[ticker.Mode][]uint32)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		mode := ticker.ModeFull
		tokenPart := entry
		if idx := strings.IndexByte(entry, ':'); idx >= 0 {
			tokenPart = entry[:idx]
			m, err := ticker.ParseMode(entry[idx+1:])
			if err != nil {
				return nil, fmt.Errorf("entry %q: %w", entry, err)
			}
			mode = m
		}
		token, err := strconv.ParseUint(tokenPart, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("entry %q: invalid instrument token", entry)
		}
		out[mode] = append(out[mode], uint32(token))
	}
	return out, nil
}

func run(logger *slog.Logger) error {
	apiKey := os.Getenv("KITE_API_KEY")
	accessToken := os.Getenv("KITE_ACCESS_TOKEN")
	if apiKey == "" || accessToken == "" {
		return fmt.Errorf("KITE_API_KEY and KITE_ACCESS_TOKEN are required")
	}

	apiBase := os.Getenv("KITE_WSS_BASE")
	if apiBase == "" {
		apiBase = ticker.DefaultAPIBase
	}

	tokens, err := parseTokens(os.Getenv("KITE_TOKENS"))
	if err != nil {
		return fmt.Errorf("parse KITE_TOKENS: %w", err)
	}
	if len(tokens) == 0 {
		return fmt.Errorf("KITE_TOKENS is required, e.g. KITE_TOKENS=408065:full,884737:ltp")
	}

	var manager *instruments.Manager
	if path := os.Getenv("KITE_INSTRUMENTS_CSV"); path != "" {
		manager, err = instruments.New(instruments.Config{
			Logger: logger,
			Path:   path,
			Watch:  true,
		})
		if err != nil {
			return fmt.Errorf("load instruments: %w", err)
		}
		defer manager.Shutdown()
	}

	state := ticker.FromParts(apiBase, apiKey, accessToken)
	for mode, toks := range tokens {
		for _, token := range toks {
			state.SubscribeToken(mode, token)
		}
	}
	logger.Info("Subscription ledger built", "endpoint", apiBase, "tokens", state.TokenCount())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := ticker.Connect(ctx, state, ticker.Config{
		Logger:        logger,
		AutoReconnect: true,
	})
	if err != nil {
		return fmt.Errorf("connect ticker: %w", err)
	}
	defer client.Close()

	for frame := range client.Frames() {
		if !frame.Binary() {
			logger.Debug("Text frame", "data", string(frame.Data))
			continue
		}
		mode, err := frame.Mode()
		if err != nil {
			logger.Debug("Unclassified binary frame", "bytes", len(frame.Data))
			continue
		}
		attrs := []any{"mode", string(mode), "bytes", len(frame.Data)}
		if manager != nil && len(frame.Data) >= 4 {
			token := uint32(frame.Data[0])<<24 | uint32(frame.Data[1])<<16 | uint32(frame.Data[2])<<8 | uint32(frame.Data[3])
			if inst, ok := manager.Lookup(token); ok {
				attrs = append(attrs, "symbol", inst.ID())
			}
		}
		logger.Info("Tick", attrs...)
	}
	return ctx.Err()
}

func main() {
	// Best effort; a missing .env file is fine.
	_ = godotenv.Load()

	logger := initLogger()
	if err := run(logger); err != nil && err != context.Canceled {
		logger.Error("kitefeed failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
