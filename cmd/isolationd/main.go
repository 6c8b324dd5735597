package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"isomargin/config"
	"isomargin/native/isolation"
	"isomargin/native/pricing"
	"isomargin/native/venue"
	"isomargin/observability/logging"
	telemetry "isomargin/observability/otel"
	"isomargin/services/isolationd"
	"isomargin/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "isolationd.toml", "path to isolationd config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ISOMARGIN_ENV"))
	logger := logging.Setup("isolationd", env)

	shutdownTelemetry := initTelemetry(env)
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	manual, err := seedVenue(cfg)
	if err != nil {
		log.Fatalf("seed venue: %v", err)
	}
	logger.Warn("running against the manual venue; production deployments must wire a live venue client")

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		log.Fatalf("open position store: %v", err)
	}
	defer func() { _ = db.Close() }()
	ledger, err := isolation.NewPositionLedger(db)
	if err != nil {
		log.Fatalf("init position ledger: %v", err)
	}

	server := isolationd.New(logger)
	server.SetLedger(ledger)
	registerOracles(server, cfg, manual, logger)
	registerTraders(server, cfg, manual, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           otelhttp.NewHandler(server.Handler(), "isolationd"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("isolationd listening", "address", cfg.ListenAddress)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("forced shutdown", "err", err)
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}
}

func initTelemetry(env string) func(context.Context) error {
	endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdown, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "isolationd",
		Environment: env,
		Endpoint:    endpoint,
		Insecure:    insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	return shutdown
}

// seedVenue builds the manual venue from the config's dev seed values.
func seedVenue(cfg *config.Config) (*venue.Manual, error) {
	manual := venue.NewManual()
	rate, err := config.Amount(cfg.Venue.PTRate)
	if err != nil {
		return nil, err
	}
	if rate.Sign() > 0 {
		manual.SetPTRate(rate)
	}

	underlying, err := config.Amount(cfg.Venue.UnderlyingPrice)
	if err != nil {
		return nil, err
	}
	if underlying.Sign() > 0 {
		manual.SetPrice(config.Address(cfg.Addresses.UnderlyingToken), underlying)
	}
	price0, err := config.Amount(cfg.Venue.Token0Price)
	if err != nil {
		return nil, err
	}
	if price0.Sign() > 0 {
		manual.SetPrice(config.Address(cfg.Addresses.Token0), price0)
	}
	price1, err := config.Amount(cfg.Venue.Token1Price)
	if err != nil {
		return nil, err
	}
	if price1.Sign() > 0 {
		manual.SetPrice(config.Address(cfg.Addresses.Token1), price1)
	}

	reserve0, err := config.Amount(cfg.Venue.Reserve0)
	if err != nil {
		return nil, err
	}
	reserve1, err := config.Amount(cfg.Venue.Reserve1)
	if err != nil {
		return nil, err
	}
	supply, err := config.Amount(cfg.Venue.LPSupply)
	if err != nil {
		return nil, err
	}
	kLast, err := config.Amount(cfg.Venue.KLast)
	if err != nil {
		return nil, err
	}
	if supply.Sign() > 0 {
		manual.SetPool(reserve0, reserve1, supply, kLast, config.Address(cfg.Venue.FeeTo))
	}
	manual.SetExpired(cfg.Venue.Expired)

	// Isolation-mode instruments are collateral only.
	for _, token := range []string{cfg.Addresses.PTToken, cfg.Addresses.YTToken, cfg.Addresses.LPToken} {
		addr := config.Address(token)
		if addr != (ethcommon.Address{}) {
			manual.SetClosing(addr, true)
		}
	}
	return manual, nil
}

func registerOracles(server *isolationd.Server, cfg *config.Config, manual *venue.Manual, logger *slog.Logger) {
	ptToken := config.Address(cfg.Addresses.PTToken)
	underlying := config.Address(cfg.Addresses.UnderlyingToken)
	market := config.Address(cfg.Addresses.Market)

	var ptOracle *pricing.PTOracle
	if ptToken != (ethcommon.Address{}) {
		var err error
		ptOracle, err = pricing.NewPTOracle(pricing.PTOracleConfig{
			PTToken:                 ptToken,
			UnderlyingToken:         underlying,
			Market:                  market,
			RateOracle:              manual,
			MarketState:             manual,
			Underlying:              manual,
			Ledger:                  manual,
			TwapDuration:            cfg.TwapDurationSeconds,
			DeductionCoefficientBps: cfg.DeductionCoefficientBps,
		})
		if err != nil {
			logger.Warn("pt oracle not registered", "err", err)
		} else {
			server.RegisterOracle("pt", ptToken, ptOracle)
		}
	}

	if ytToken := config.Address(cfg.Addresses.YTToken); ytToken != (ethcommon.Address{}) && ptOracle != nil {
		ytOracle, err := pricing.NewYTOracle(pricing.YTOracleConfig{YTToken: ytToken, PT: ptOracle, Ledger: manual})
		if err != nil {
			logger.Warn("yt oracle not registered", "err", err)
		} else {
			server.RegisterOracle("yt", ytToken, ytOracle)
		}
	}

	if lpToken := config.Address(cfg.Addresses.LPToken); lpToken != (ethcommon.Address{}) {
		lpOracle, err := pricing.NewLPOracle(pricing.LPOracleConfig{
			LPToken: lpToken,
			Token0:  config.Address(cfg.Addresses.Token0),
			Token1:  config.Address(cfg.Addresses.Token1),
			Pool:    manual,
			Prices:  manual,
			Ledger:  manual,
		})
		if err != nil {
			logger.Warn("lp oracle not registered", "err", err)
		} else {
			server.RegisterOracle("lp", lpToken, lpOracle)
		}
	}
}

func registerTraders(server *isolationd.Server, cfg *config.Config, manual *venue.Manual, logger *slog.Logger) {
	base := isolation.TraderConfig{
		IsolationToken:  config.Address(cfg.Addresses.PTToken),
		UnderlyingToken: config.Address(cfg.Addresses.UnderlyingToken),
		MarginEngine:    config.Address(cfg.Addresses.MarginEngine),
		Market:          config.Address(cfg.Addresses.Market),
		Router:          manual,
		MarketState:     manual,
		Vaults:          isolation.NewStaticVaultRegistry(),
	}

	wrapCfg := base
	wrapCfg.TraderAddress = config.Address(cfg.Addresses.WrapperTrader)
	wrapper, err := isolation.NewWrapper(wrapCfg)
	if err != nil {
		logger.Warn("wrapper trader not configured", "err", err)
		return
	}

	unwrapCfg := base
	unwrapCfg.TraderAddress = config.Address(cfg.Addresses.UnwrapperTrader)
	unwrapper, err := isolation.NewUnwrapper(unwrapCfg)
	if err != nil {
		logger.Warn("unwrapper trader not configured", "err", err)
		return
	}
	server.SetTraders(wrapper, unwrapper)
}
