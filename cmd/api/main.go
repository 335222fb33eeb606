package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edgewatch/arbcore/internal/api"
	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/collaborators"
	"github.com/edgewatch/arbcore/internal/config"
	"github.com/edgewatch/arbcore/internal/detector"
	"github.com/edgewatch/arbcore/internal/engine"
	"github.com/edgewatch/arbcore/internal/montecarlo"
	"github.com/edgewatch/arbcore/internal/poolgraph"
	"github.com/edgewatch/arbcore/internal/signalcoord"
	"github.com/edgewatch/arbcore/internal/vault"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	switch cfg.App.LogLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exchangeKey, exchangeSecret := resolveBinanceCredentials(ctx, cfg)

	pool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	strategies := collaborators.NewPostgresStrategyStore(pool)

	oracleCfg := collaborators.DefaultBinanceOracleConfig()
	oracleCfg.APIKey = exchangeKey
	oracleCfg.SecretKey = exchangeSecret
	oracleCfg.Testnet = cfg.App.Environment != "production"
	oracle := collaborators.NewBinancePriceOracle(oracleCfg)

	natsCfg := collaborators.NATSStreamConfig{URL: cfg.NATS.URL, Prefix: cfg.NATS.Prefix}
	swapStream, err := collaborators.NewNATSSwapEventStream(natsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect swap event stream")
	}
	defer swapStream.Close()

	oppStream, err := collaborators.NewNATSOpportunityStream(natsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect opportunity stream")
	}
	defer oppStream.Close()

	graph := poolgraph.NewWithMirror(newPriceMirror(ctx, cfg))

	det := detector.New(graph, detector.Config{
		MinSpreadBps:    cfg.Detector.MinSpreadBps,
		MinLiquidityUsd: cfg.Detector.MinLiquidityUsd,
		StaleThreshold:  time.Duration(cfg.Detector.StaleThresholdMs) * time.Millisecond,
		FreshnessWindow: time.Duration(cfg.Detector.StaleThresholdMs) * time.Millisecond,
		MaxPathLength:   cfg.Detector.MaxPathLength,
	})

	coordCfg := signalcoord.DefaultConfig()
	coordCfg.MinNetProfitUsd = cfg.Coordinator.MinNetProfitUsd
	coordCfg.MaxRiskScore = cfg.Coordinator.MaxRiskScore
	coordCfg.RunMonteCarlo = cfg.Coordinator.RunMonteCarlo

	coord := signalcoord.New(kernelInputBuilder{}, strategies, coordCfg)

	pipeline := engine.NewPipeline(graph, det, coord, oracle, oppStream)
	evalSvc := engine.NewEvaluationService(cfg.Coordinator.RunMonteCarlo, montecarlo.Options{})

	healthz := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}

	server := api.NewServer(api.Config{
		Host:        cfg.API.Host,
		Port:        cfg.API.Port,
		Eval:        evalSvc,
		Coordinator: coord,
		Strategies:  strategies,
		Healthz:     healthz,
	})

	go runSwapEventLoop(ctx, pipeline, swapStream)
	go runTickLoop(ctx, pipeline, cfg)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	log.Info().Msg("shutdown complete")
}

// resolveBinanceCredentials prefers Vault-managed secrets, falling back to
// the configured exchange block when Vault is unavailable.
func resolveBinanceCredentials(ctx context.Context, cfg *config.Config) (string, string) {
	exCfg := cfg.Exchanges["binance"]

	vc, err := vault.NewClientFromEnv()
	if err != nil {
		log.Warn().Err(err).Msg("vault client unavailable, using configured exchange credentials")
		return exCfg.APIKey, exCfg.SecretKey
	}

	secrets, err := vc.GetExchangeConfig(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch exchange secret from vault, using configured credentials")
		return exCfg.APIKey, exCfg.SecretKey
	}

	return secrets.BinanceAPIKey, secrets.BinanceAPISecret
}

// newPriceMirror pings the configured Redis instance and returns a mirror
// backed by it, or nil when Redis is unreachable -- mirroring is an
// optional read-through fan-out for other consumers, never a dependency
// of the pool graph itself.
func newPriceMirror(ctx context.Context, cfg *config.Config) *poolgraph.RedisMirror {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, pool graph will not mirror price points")
		client.Close()
		return nil
	}

	return poolgraph.NewRedisMirror(client, 0)
}

// runSwapEventLoop drains the swap event stream and folds each event into
// the pipeline in arrival order until ctx is canceled.
func runSwapEventLoop(ctx context.Context, pipeline *engine.Pipeline, stream engine.SwapEventStream) {
	for {
		if ctx.Err() != nil {
			return
		}
		ev, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("swap event stream read failed")
			continue
		}
		if err := pipeline.ProcessEvent(ctx, ev, time.Now()); err != nil {
			log.Error().Err(err).Msg("pipeline event processing failed")
		}
	}
}

// runTickLoop drives the coordinator's reevaluation pass and the
// detector's sweeper on a fixed cadence.
func runTickLoop(ctx context.Context, pipeline *engine.Pipeline, cfg *config.Config) {
	interval := time.Duration(cfg.Coordinator.ValidForSeconds*1000) * time.Millisecond
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := pipeline.Tick(ctx, now); err != nil {
				log.Error().Err(err).Msg("pipeline tick failed")
			}
		}
	}
}

// kernelInputBuilder turns a detected Opportunity into the kernel's
// ArbitrageInputs, using the opportunity's own profit/size/gas estimate
// for the fields the detector already measured and conservative defaults
// for the rest; the coordinator layers the matched strategy's approved
// Params on top before scoring.
type kernelInputBuilder struct{}

func (kernelInputBuilder) Build(_ context.Context, opp arbmodel.Opportunity) (arbmodel.ArbitrageInputs, error) {
	edgeBps := 0.0
	if opp.SizeOptUsd > 0 {
		edgeBps = opp.ProfitUsd / opp.SizeOptUsd * 10000
	}

	return arbmodel.ArbitrageInputs{
		EdgeBps:            edgeBps,
		NotionalUsd:        opp.SizeOptUsd,
		CapitalUsd:         opp.MaxSize,
		RiskAversionLambda: 1.0,
		Fees: arbmodel.FeeSchedule{
			TotalFeesBps:   5,
			ExecutorFeeUsd: opp.GasUsd,
		},
		Frictions: arbmodel.Frictions{
			GasUsdMean: opp.GasUsd,
		},
		Latency: arbmodel.LatencyParams{
			LatencySec:   float64(opp.LatencyBudgetMs) / 1000,
			BaseFillProb: opp.Confidence,
		},
		Failures: arbmodel.FailureProbs{
			ReorgOrMev: opp.CompetitionLevel * 0.1,
		},
	}, nil
}
