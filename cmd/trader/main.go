package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/feed"
	"main/internal/glft"
	"main/internal/obs"
	"main/internal/oms"
	"main/internal/oms/mock"
	"main/internal/ops"
	"main/internal/recorder"
	"main/internal/risk"
	"main/internal/state"
	"main/internal/strategy"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disabled)")
	bookURL := flag.String("book-url", "", "Market data normalizer WebSocket URL (empty=internal generator)")
	inventoryURL := flag.String("inventory-url", "", "Inventory publisher WebSocket URL (empty=disabled)")
	generatorInterval := flag.Duration("generator-interval", 100*time.Millisecond, "Internal book generator tick")
	generatorBase := flag.Float64("generator-base", 50000, "Internal book generator base price")
	statsInterval := flag.Duration("stats-interval", 15*time.Second, "Metrics report interval (0=disable)")
	snapshotPath := flag.String("snapshot-path", "testdata/positions.json", "Position snapshot file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *pyroscopeAddr, *bookURL, *inventoryURL, *generatorInterval, *generatorBase, *statsInterval, *snapshotPath); err != nil {
		log.Fatalf("trader: %v", err)
	}
}

func run(ctx context.Context, configPath, pyroscopeAddr, bookURL, inventoryURL string, generatorInterval time.Duration, generatorBase float64, statsInterval time.Duration, snapshotPath string) error {
	loaded, err := ops.Load(configPath)
	if err != nil {
		return err
	}

	if pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   pyroscopeAddr,
			Tags:            map[string]string{"env": "local"},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	metrics := obs.NewMetrics()
	router := oms.NewRouter(oms.RouterConfig{Metrics: metrics})
	defer router.Close()

	positions := state.NewPositionReducer()
	if snap, err := state.ReadSnapshot(snapshotPath); err == nil {
		positions.ApplySnapshot(snap)
		logs.Infof("recovered %d positions from %s", len(snap.Positions), snapshotPath)
	}

	guard := risk.NewEngine(loaded.Risk)
	model := glft.New(loaded.Model)

	mm, err := strategy.NewMarketMaker(loaded.Strategy, router, model, guard, positions, metrics)
	if err != nil {
		return err
	}
	mm.SetRejectHandler(func(ev oms.OrderEvent) {
		logs.Errorf("order %s rejected: %s", ev.ClOrdID, ev.Text)
	})

	var store *recorder.Store
	if loaded.Recorder.Enabled {
		client, err := conn.New(conn.Option{
			Host:     loaded.Recorder.Host,
			Port:     loaded.Recorder.Port,
			User:     loaded.Recorder.User,
			Password: loaded.Recorder.Password,
			Database: loaded.Recorder.Database,
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()

		store, err = recorder.New(client, recorder.Config{})
		if err != nil {
			return err
		}
		go store.Run(ctx)
		defer store.Close()

		router.SetEventHandler(func(ev oms.OrderEvent) {
			mm.HandleOrderEvent(ev)
			store.RecordEvent(ev)
		})
	}

	for _, exchange := range loaded.Exchanges {
		adapter := mock.New(mock.Config{
			Name:            exchange.Name,
			Symbols:         exchange.Symbols,
			FillProbability: 0.3,
			FillParts:       2,
			MarkPrice:       generatorBase,
		})
		if err := mm.RegisterExchange(exchange.Name, adapter); err != nil {
			return err
		}
	}
	if err := router.ConnectAll(); err != nil {
		return err
	}
	if err := mm.Start(); err != nil {
		return err
	}

	if err := startBookFeed(ctx, mm, loaded, bookURL, generatorInterval, generatorBase); err != nil {
		return err
	}
	if err := startInventoryFeed(ctx, mm, inventoryURL); err != nil {
		return err
	}

	go sweep(ctx, router, loaded.OrderTimeout)
	if statsInterval > 0 {
		go report(ctx, metrics, statsInterval)
	}

	logs.Infof("trader running, symbol: %s, exchange: %s", loaded.Strategy.Symbol, loaded.Strategy.Exchange)
	<-ctx.Done()

	mm.Stop()
	if err := state.WriteSnapshot(snapshotPath, positions.Snapshot()); err != nil {
		logs.Errorf("write position snapshot, err: %+v", err)
	}
	return nil
}

func startBookFeed(ctx context.Context, mm *strategy.MarketMaker, loaded ops.Loaded, bookURL string, interval time.Duration, basePrice float64) error {
	if bookURL == "" {
		generator := feed.NewGenerator(loaded.Strategy.Symbol, basePrice, basePrice*loaded.Strategy.MinSpreadBps/10000, loaded.Strategy.QuoteSize, 5)
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					mm.OnBookUpdate(generator.Next(now))
				}
			}
		}()
		return nil
	}

	stream := feed.NewBookStream(ctx, bookURL)
	if err := stream.StartWebsocket(ctx); err != nil {
		return err
	}
	if err := stream.Subscribe(ctx, loaded.Strategy.Symbol); err != nil {
		return err
	}
	stream.Observe(ctx, mm.OnBookUpdate)
	return nil
}

func startInventoryFeed(ctx context.Context, mm *strategy.MarketMaker, inventoryURL string) error {
	if inventoryURL == "" {
		return nil
	}

	stream := feed.NewInventoryStream(ctx, inventoryURL)
	if err := stream.StartWebsocket(ctx); err != nil {
		return err
	}
	stream.Observe(ctx, mm.OnInventoryUpdate)
	return nil
}

// sweep ages out orders stuck without a terminal event and prunes old
// terminal entries from the table.
func sweep(ctx context.Context, router *oms.Router, timeout time.Duration) {
	interval := timeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			router.ExpireStale(timeout)
			router.Table().PruneTerminal(time.Now().Add(-time.Hour))
		}
	}
}

func report(ctx context.Context, metrics *obs.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := metrics.Snapshot()
			logs.Infof("orders: %d, acks: %d, fills: %d, cancels: %d, rejects: %d, invalid: %d, quote cycles: %d, quote avg/max: %s/%s",
				snap.OrdersSubmitted, snap.Acks, snap.Fills, snap.Cancels, snap.Rejects,
				snap.InvalidTransitions, snap.QuoteCycles,
				snap.QuoteLatency.Avg, snap.QuoteLatency.Max)
		}
	}
}
