// Package orchestrator implements app.Runner for the transfer orchestrator
// process.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/stablerelay/transfer-middleware/pkg/api"
	apphttp "github.com/stablerelay/transfer-middleware/pkg/app/http"
	"github.com/stablerelay/transfer-middleware/pkg/asset"
	"github.com/stablerelay/transfer-middleware/pkg/bridge"
	"github.com/stablerelay/transfer-middleware/pkg/cctp"
	"github.com/stablerelay/transfer-middleware/pkg/config"
	"github.com/stablerelay/transfer-middleware/pkg/ethereum"
	"github.com/stablerelay/transfer-middleware/pkg/jobstore"
	orchpkg "github.com/stablerelay/transfer-middleware/pkg/orchestrator"
	"github.com/stablerelay/transfer-middleware/pkg/payout"
	"github.com/stablerelay/transfer-middleware/pkg/pgutil"
	"github.com/stablerelay/transfer-middleware/pkg/watcher"
)

const defaultRequestTimeout = 60

// Server holds cfg to init the orchestrator server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new orchestrator server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("orchestrator config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting transfer orchestrator",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("chains", len(cfg.Chains)),
	)

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)

	store := jobstore.NewStore(db)

	clients, err := s.connectChains(logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, client := range clients {
			client.Close()
		}
	}()

	claims := watcher.NewClaimSet()
	if err := s.seedClaims(ctx, store, claims); err != nil {
		return err
	}

	watchers := make(map[string]orchpkg.DepositWatcher, len(clients))
	cctpClients := make(map[string]cctp.ChainClient, len(clients))
	payoutClients := make(map[string]payout.ChainClient, len(clients))
	// One signer key, so the relay address is the same on every chain.
	var relayAddress string
	for chain, client := range clients {
		chainCfg := cfg.Chains[chain]
		watchers[chain] = watcher.New(chain, client, client.RelayAddress(),
			chainCfg.PollInterval, chainCfg.DepositTimeout, claims, logger)
		cctpClients[chain] = client
		payoutClients[chain] = client
		relayAddress = client.RelayAddress().Hex()
	}

	attestor := cctp.NewAttestationClient(cfg.Attestation, logger)
	engine, err := cctp.NewEngine(cctpClients, cfg.Chains, attestor, logger)
	if err != nil {
		return fmt.Errorf("create bridge engine: %w", err)
	}

	orch := orchpkg.New(
		store,
		watchers,
		bridge.NewDriver(engine, logger),
		payout.NewExecutor(payoutClients, logger),
		asset.New(cfg.Asset.Symbol, cfg.Asset.Decimals),
		logger,
	)

	if err := orch.Resume(ctx); err != nil {
		orch.Stop()
		return fmt.Errorf("crash recovery: %w", err)
	}

	router := s.setupRouter(orch, store, db, relayAddress, logger)

	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)

	// Stop in-flight pipelines before deferred client/DB closes kick in.
	orch.Stop()

	return err
}

func (s *Server) connectChains(logger *zap.Logger) (map[string]*ethereum.Client, error) {
	clients := make(map[string]*ethereum.Client, len(s.cfg.Chains))
	for chain, chainCfg := range s.cfg.Chains {
		client, err := ethereum.NewClient(chain, chainCfg, s.cfg.Relay.PrivateKey, logger)
		if err != nil {
			for _, c := range clients {
				c.Close()
			}
			return nil, fmt.Errorf("connect chain %s: %w", chain, err)
		}
		clients[chain] = client
	}
	return clients, nil
}

// seedClaims replays the deposit tx hashes of persisted jobs into the claim
// set so a resumed deposit wait cannot rematch a transfer that an earlier run
// already consumed.
func (s *Server) seedClaims(ctx context.Context, store jobstore.Store, claims *watcher.ClaimSet) error {
	jobs, err := store.ListUnfinished(ctx)
	if err != nil {
		return fmt.Errorf("seed deposit claims: %w", err)
	}
	for _, job := range jobs {
		if job.DepositTxHash != nil {
			claims.Claim(*job.DepositTxHash, job.ID)
		}
	}
	return nil
}

func (s *Server) setupRouter(
	orch *orchpkg.Orchestrator,
	store jobstore.Store,
	db *bun.DB,
	relayAddress string,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Second * defaultRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			logger.Warn("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if s.cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	api.RegisterRoutes(r, orch, store, relayAddress, logger)

	return r
}
