package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alejandrodnm/polyledger/config"
	"github.com/alejandrodnm/polyledger/internal/adapters/notify"
	"github.com/alejandrodnm/polyledger/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyledger/internal/adapters/storage"
	"github.com/alejandrodnm/polyledger/internal/application/engine"
	"github.com/alejandrodnm/polyledger/internal/application/validator"
	"github.com/alejandrodnm/polyledger/internal/domain"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	wallets := flag.String("wallets", "", "comma-separated wallet addresses")
	walletsFile := flag.String("wallets-file", "", "file with one wallet address per line")
	reconcile := flag.Bool("reconcile", false, "validate computed P&L against the UI benchmark")
	table := flag.Bool("table", false, "print full result tables (default: compact 1-line)")
	noStore := flag.Bool("no-store", false, "skip persisting results to SQLite")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	walletList, err := collectWallets(*wallets, *walletsFile)
	if err != nil {
		slog.Error("failed to read wallet list", "err", err)
		os.Exit(1)
	}
	if len(walletList) == 0 {
		slog.Error("no wallets given: use -wallets or -wallets-file")
		os.Exit(1)
	}

	slog.Info("polyledger starting",
		"config", *configPath,
		"wallets", len(walletList),
		"reconcile", *reconcile,
		"split_policy", cfg.Engine.SplitPolicy,
	)

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase, cfg.API.DataBase)

	var store *storage.SQLiteStorage
	if !*noStore {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
	}

	eng := engine.New(engine.Config{
		SplitPolicy:        engine.SplitPolicy(cfg.Engine.SplitPolicy),
		LargeOpenThreshold: cfg.Engine.LargeOpenThreshold,
		Workers:            cfg.Engine.Workers,
	}, client, client, client)

	reporter := notify.NewConsole(*table)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	results := eng.ComputeBatch(ctx, walletList)
	if err := reporter.ReportResults(ctx, results); err != nil {
		slog.Warn("reporter error", "err", err)
	}

	var reconRecords []domain.ReconciliationRecord
	if *reconcile {
		v := validator.New(cfg.ThresholdPolicy(), client)
		reconRecords, err = v.ValidateBatch(ctx, results)
		if err != nil {
			slog.Warn("reconciliation interrupted", "err", err)
		}
		if err := reporter.ReportReconciliation(ctx, reconRecords); err != nil {
			slog.Warn("reporter error", "err", err)
		}
	}

	if store != nil {
		if err := store.SaveRun(ctx, results, reconRecords); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}

	slog.Info("polyledger done", "wallets", len(results))
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// collectWallets junta las direcciones del flag y del archivo, deduplicadas
// y en minúsculas (las direcciones EVM no distinguen mayúsculas).
func collectWallets(csv, file string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	add := func(w string) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}

	for _, w := range strings.Split(csv, ",") {
		add(w)
	}

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			add(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	return out, nil
}
