// Package main runs one batched trading pass over a wallet file and a token
// file, serving health, metrics and status over HTTP while it runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/nightlyone/lockfile"
	"github.com/rs/zerolog"

	"solana-batch-trader/internal/bridge"
	"solana-batch-trader/internal/config"
	"solana-batch-trader/internal/confirm"
	"solana-batch-trader/internal/coordinator"
	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/feed"
	"solana-batch-trader/internal/logging"
	"solana-batch-trader/internal/oracle"
	"solana-batch-trader/internal/registry"
	"solana-batch-trader/internal/signer"
	"solana-batch-trader/internal/solana"
	"solana-batch-trader/internal/storage"
	"solana-batch-trader/internal/swap"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before environment overrides")
	walletsPath := flag.String("wallets", "", "File with one base58 private key per line, or - to prompt (required)")
	tokensPath := flag.String("tokens", "", "File with one token mint address per line (required)")
	direction := flag.String("direction", "buy", "Trade direction: buy or sell")
	amount := flag.Float64("amount", 0, "Trade amount: percent of balance, or fiat in fiat mode (overrides config)")
	amountMode := flag.String("amount-mode", "", "Amount mode: percent or fiat (overrides config)")
	slippage := flag.Float64("slippage", 0, "Slippage tolerance in percent (overrides config)")
	rpcURL := flag.String("rpc-url", "", "Solana RPC endpoint (overrides config)")
	statusAddr := flag.String("status-addr", "", "HTTP address for /health, /metrics and /status (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	jsonOut := flag.Bool("json", false, "Print entries as JSON lines")
	bridgeEvent := flag.Bool("bridge-event", false, "Ask the signing service to start its event flow for every bridged wallet")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(map[string]func(){
		"amount":      func() { cfg.Trading.Amount = *amount },
		"amount-mode": func() { cfg.Trading.AmountMode = *amountMode },
		"slippage":    func() { cfg.Trading.Slippage = *slippage },
		"rpc-url":     func() { cfg.Solana.RPCURL = *rpcURL },
		"status-addr": func() { cfg.App.StatusAddr = *statusAddr },
		"log-level":   func() { cfg.App.LogLevel = *logLevel },
	})

	logger := logging.New(cfg.App.LogLevel, cfg.App.LogPretty)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if *walletsPath == "" || *tokensPath == "" {
		logger.Fatal().Msg("--wallets and --tokens are required")
	}
	dir := domain.Direction(*direction)
	if !dir.IsValid() {
		logger.Fatal().Str("direction", *direction).Msg("direction must be buy or sell")
	}

	lock, err := acquireLock(cfg.App.LockFile)
	if err != nil {
		logger.Fatal().Err(err).Str("lock_file", cfg.App.LockFile).Msg("another trader is running")
	}
	defer lock.Unlock()

	walletText, err := readWallets(*walletsPath, os.Stdin, os.Stderr)
	if err != nil {
		logger.Fatal().Err(err).Msg("read wallets")
	}
	tokenText, err := os.ReadFile(*tokensPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("read tokens")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := runOptions{dir: dir, walletText: walletText, tokenText: string(tokenText), jsonOut: *jsonOut, bridgeEvent: *bridgeEvent}
	if err := run(ctx, cfg, logger, opts); err != nil {
		logger.Fatal().Err(err).Msg("trader failed")
	}
}

// applyFlags runs the setter of every flag given on the command line.
func applyFlags(setters map[string]func()) {
	flag.Visit(func(f *flag.Flag) {
		if set, ok := setters[f.Name]; ok {
			set()
		}
	})
}

// acquireLock takes the single-instance lock file.
func acquireLock(path string) (lockfile.Lockfile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve lock path: %w", err)
	}
	lock, err := lockfile.New(abs)
	if err != nil {
		return "", err
	}
	if err := lock.TryLock(); err != nil {
		return "", err
	}
	return lock, nil
}

// runOptions carries the command-line inputs of one run.
type runOptions struct {
	dir         domain.Direction
	walletText  string
	tokenText   string
	jsonOut     bool
	bridgeEvent bool
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts runOptions) error {
	dir := opts.dir

	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL,
		solana.WithTimeout(cfg.Trading.CallTimeout),
		solana.WithCommitment(cfg.Solana.Commitment),
	)

	jup := swap.NewJupiterClient(cfg.Jupiter.BaseURL,
		swap.WithCallTimeout(cfg.Trading.CallTimeout),
		swap.WithRateLimit(cfg.Jupiter.RateLimit, cfg.Jupiter.Burst),
		swap.WithLogger(logger),
	)

	chain := oracle.New(oracle.Options{
		RPC:         rpc,
		PriceURL:    cfg.Jupiter.PriceURL,
		CallTimeout: cfg.Trading.CallTimeout,
		Logger:      logger,
	})

	sub := signer.New(signer.Options{RPC: rpc, CallTimeout: cfg.Trading.CallTimeout, Logger: logger})

	reg := registry.New()
	fd := feed.New(feed.Options{Wallets: reg, Balances: chain, Logger: logger})

	sinks, closeSinks, err := openSinks(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeSinks()
	for _, s := range sinks.feedSinks {
		fd.AddSink(s)
	}

	var confirmer coordinator.Confirmer
	if cfg.Trading.Confirm {
		wsCfg := solana.DefaultWSConfig()
		wsCfg.Commitment = cfg.Solana.Commitment
		wsCfg.Logger = logger
		ws, err := solana.NewWSClient(ctx, cfg.Solana.WSURL, &wsCfg)
		if err != nil {
			return fmt.Errorf("connect websocket: %w", err)
		}
		defer ws.Close()

		watcher := confirm.New(confirm.Options{WS: ws, Recorder: fd, Logger: logger})
		defer watcher.Close()
		confirmer = watcher
	}

	coord := coordinator.New(coordinator.Options{
		Registry:     reg,
		Feed:         fd,
		Swap:         jup,
		Submitter:    sub,
		Oracle:       chain,
		Confirmer:    confirmer,
		PaceInterval: cfg.Trading.PaceInterval,
		PriceBuffer:  cfg.Trading.PriceBuffer,
		CallTimeout:  cfg.Trading.CallTimeout,
		Amount:       cfg.Trading.Amount,
		AmountMode:   domain.AmountMode(cfg.Trading.AmountMode),
		Slippage:     cfg.Trading.Slippage,
		Logger:       logger,
	})
	defer coord.Destroy()

	res := coord.ImportWallets(opts.walletText)
	for _, e := range res.Errors {
		logger.Warn().Str("error", e).Msg("wallet rejected")
	}
	res = coord.ImportTokens(opts.tokenText)
	for _, e := range res.Errors {
		logger.Warn().Str("error", e).Msg("token rejected")
	}

	bridgeCtx, stopBridges := context.WithCancel(ctx)
	defer stopBridges()
	var bridges sync.WaitGroup
	var bridgeStatus bridgeInfo
	if cfg.App.BridgeURL != "" {
		clients := startBridges(bridgeCtx, &bridges, cfg.App.BridgeURL, reg, sub, logger)
		if len(clients) > 0 {
			bridgeStatus = clients[0]
		}
		if opts.bridgeEvent {
			triggerEvents(ctx, clients, logger)
		}
	}

	srv := newStatusServer(cfg.App.StatusAddr, coord, sinks.runs, bridgeStatus, logger)
	srv.Start()
	defer srv.Shutdown(context.Background())

	printer := newEntryPrinter(os.Stdout, opts.jsonOut)
	started := time.Now()
	if !coord.StartTrading(dir, printer.Print) {
		return errors.New("run rejected: check wallets, tokens and price availability")
	}
	runID := coord.State().RunID
	recordRunStart(ctx, sinks.runs, runID, dir, reg, started, logger)

	// SIGINT stops after the wallet in flight; a second signal exits.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	reason := "exhausted"
	select {
	case <-coord.Done():
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("stopping after current wallet")
		reason = "stopped"
		coord.StopTrading()
		go func() {
			<-sigCh
			logger.Warn().Msg("second signal, exiting")
			os.Exit(1)
		}()
		coord.Wait()
	}

	stats := coord.Stats()
	recordRunFinish(ctx, sinks.runs, runID, reason, stats.TotalTrades, logger)
	printer.Summary(stats)

	if cfg.App.BridgeURL != "" && reason == "exhausted" {
		logger.Info().Msg("serving bridge requests; interrupt to exit")
		<-sigCh
	}
	stopBridges()
	bridges.Wait()
	return nil
}

// startBridges connects one bridge client per wallet and returns the connected ones.
func startBridges(ctx context.Context, wg *sync.WaitGroup, url string, reg *registry.Registry, sub signer.Submitter, logger zerolog.Logger) []*bridge.Client {
	wallets, tokens := reg.Snapshot()
	mints := make([]string, len(tokens))
	for i, t := range tokens {
		mints[i] = t.Address
	}

	var clients []*bridge.Client
	for _, w := range wallets {
		client := bridge.New(bridge.Options{URL: url, Wallet: w, Tokens: mints, Submitter: sub, Logger: logger})
		if err := client.Connect(ctx); err != nil {
			logger.Warn().Err(err).Str("wallet", w.Display()).Msg("bridge connect failed")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := client.Run(ctx); err != nil {
				logger.Warn().Err(err).Msg("bridge closed")
			}
		}()
		clients = append(clients, client)
	}
	return clients
}

// triggerEvents starts the service-side event flow for each bridged wallet.
func triggerEvents(ctx context.Context, clients []*bridge.Client, logger zerolog.Logger) {
	for _, c := range clients {
		res, err := c.TriggerEvent(ctx, c.Address())
		if err != nil {
			logger.Warn().Err(err).Str("wallet", domain.DisplayAddress(c.Address())).Msg("bridge event failed")
			continue
		}
		logger.Info().
			Str("wallet", domain.DisplayAddress(res.Address)).
			Bool("ok", res.OK).
			Str("error", res.Error).
			Msg("bridge event triggered")
	}
}

func recordRunStart(ctx context.Context, runs storage.RunStore, runID string, dir domain.Direction, reg *registry.Registry, started time.Time, logger zerolog.Logger) {
	if runs == nil {
		return
	}
	err := runs.Start(ctx, &storage.RunRecord{
		RunID:     runID,
		Direction: dir.String(),
		Wallets:   reg.WalletCount(),
		Tokens:    reg.TokenCount(),
		StartedAt: started.UnixMilli(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("record run start")
	}
}

func recordRunFinish(ctx context.Context, runs storage.RunStore, runID, reason string, entries int, logger zerolog.Logger) {
	if runs == nil {
		return
	}
	if err := runs.Finish(ctx, runID, time.Now().UnixMilli(), reason, entries); err != nil {
		logger.Warn().Err(err).Msg("record run finish")
	}
}
