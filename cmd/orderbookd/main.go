// Command orderbookd runs the orderbook synchronization core: it tracks
// every configured (exchange, symbol), keeps each one's replica aligned
// via REST snapshots and websocket diffs, and publishes the normalized
// result to NATS JetStream while serving fleet status over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/binance"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/deribit"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/okx"
	"github.com/MNS-Vic/marketprism-sub006/exchanges/request"
	"github.com/MNS-Vic/marketprism-sub006/health"
	"github.com/MNS-Vic/marketprism-sub006/internal/config"
	"github.com/MNS-Vic/marketprism-sub006/internal/log"
	"github.com/MNS-Vic/marketprism-sub006/internal/markettype"
	"github.com/MNS-Vic/marketprism-sub006/internal/symbol"
	"github.com/MNS-Vic/marketprism-sub006/manager"
	"github.com/MNS-Vic/marketprism-sub006/publisher"
)

// rate-limit weight budgets per minute, grounded on each exchange's
// published public-data limits.
var weightBudgets = map[string]int{
	"binance": 6000,
	"okx":     1200,
	"deribit": 1200,
}

func main() {
	app := &cli.App{
		Name:  "orderbookd",
		Usage: "maintain synchronized orderbook replicas across exchanges",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to config file"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Init(c.Bool("debug") || cfg.Debug)

	limiter := request.NewLimiter()
	for exchange, weight := range weightBudgets {
		limiter.Register(exchange, weight, time.Second)
	}
	client := request.NewClient(limiter)

	conn, js, err := publisher.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer conn.Close()
	pub := publisher.New(js, publisher.DefaultConfig())
	defer pub.Close()

	mgr := manager.New(pub.Publish)

	if err := registerSymbols(mgr, cfg, client); err != nil {
		return fmt.Errorf("register symbols: %w", err)
	}

	srv := health.New(cfg.HealthAddr, mgr)
	srv.Start()
	log.Infof(log.HealthMgr, "health server listening on %s", cfg.HealthAddr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	log.Infof(log.ManagerMgr, "shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	mgr.Shutdown(10 * time.Second)
	return nil
}

func registerSymbols(mgr *manager.Manager, cfg *config.Config, client *request.Client) error {
	for exchange, ex := range cfg.Exchanges {
		if !ex.Enabled {
			continue
		}
		for _, s := range ex.Symbols {
			mt, err := markettype.New(s.MarketType)
			if err != nil {
				return fmt.Errorf("%s %s: %w", exchange, s.Native, err)
			}

			spec, err := buildSpec(exchange, mt, s.Native, ex.DepthLimit, ex.Heartbeat, client)
			if err != nil {
				return err
			}
			mgr.Register(spec)
		}
	}
	return nil
}

// buildSpec selects the snapshot fetcher and sequence policy for exchange,
// keyed purely by exchange identity at construction time - nothing
// downstream branches on exchange again.
func buildSpec(exchange string, mt markettype.Item, native string, depthLimit int, heartbeat time.Duration, client *request.Client) (manager.SymbolSpec, error) {
	canon := symbol.Normalize(native)
	spec := manager.SymbolSpec{
		Exchange:     exchange,
		MarketType:   mt,
		NativeSymbol: native,
		CanonSymbol:  canon,
		DepthLimit:   depthLimit,
		Heartbeat:    heartbeat,
	}

	switch exchange {
	case "binance":
		spec.Fetcher = binance.NewSnapshotClient(client)
		if mt.IsDerivative() {
			spec.Policy = binance.DerivativesPolicy{}
		} else {
			spec.Policy = binance.SpotPolicy{}
		}
	case "okx":
		spec.Fetcher = okx.NewSnapshotClient(client)
		spec.Policy = okx.Policy{}
	case "deribit":
		spec.Fetcher = deribit.NewSnapshotClient(client)
		spec.Policy = deribit.Policy{}
	default:
		return manager.SymbolSpec{}, fmt.Errorf("unsupported exchange %q", exchange)
	}
	return spec, nil
}
