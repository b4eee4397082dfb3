package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"reagentbank.io/internal/bank"
	"reagentbank.io/internal/catalog"
	"reagentbank.io/internal/config"
	"reagentbank.io/internal/events"
	"reagentbank.io/internal/inventory"
	"reagentbank.io/internal/ledger"
	"reagentbank.io/internal/nav"
	"reagentbank.io/internal/observability"
	"reagentbank.io/internal/persistence/auditlog"
	"reagentbank.io/internal/persistence/ledgerdb"
	"reagentbank.io/internal/protocol"
	"reagentbank.io/internal/transport/ws"
)

var version = "dev"

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configPath  = flag.String("config", "configs/config.yaml", "config yaml path")
		dbPath      = flag.String("data", "", "override sqlite ledger path")
		catalogPath = flag.String("catalog", "", "override item catalog path")
		auditDir    = flag.String("audit", "", "override audit log directory")
		storeKind   = flag.String("store", "sqlite", "ledger backend: sqlite|memory")
		enablePprof = flag.Bool("pprof", envBool("REAGENTBANK_PPROF", false), "expose /debug/pprof on the main listener")
		enableAdmin = flag.Bool("admin-http", envBool("REAGENTBANK_ADMIN_HTTP", defaultEnableAdminHTTP()), "expose loopback-only /admin/v1 endpoints")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}
	if *auditDir != "" {
		cfg.AuditDir = *auditDir
	}

	logger, err := observability.NewLogger(observability.LogOptions{
		Development: cfg.Log.Development,
		Level:       cfg.Log.Level,
		Service:     cfg.Tracing.ServiceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signalContext()
	defer stop()

	opts := runOptions{addr: *addr, store: *storeKind, pprof: *enablePprof, admin: *enableAdmin}
	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

type runOptions struct {
	addr  string
	store string
	pprof bool
	admin bool
}

func run(ctx context.Context, cfg config.Config, opts runOptions, logger *zap.Logger) error {
	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingOptions{
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
		Headers:  cfg.Tracing.Headers,
		Service:  cfg.Tracing.ServiceName,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	var (
		store ledger.Store
		db    *ledgerdb.Store
	)
	switch opts.store {
	case "sqlite":
		db, err = ledgerdb.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("ledger db: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Warn("ledger db close", zap.Error(err))
			}
		}()
		store = db
	case "memory":
		logger.Warn("using in-memory ledger; nothing survives a restart")
		store = ledger.NewMemoryStore()
	default:
		return fmt.Errorf("unknown -store %q", opts.store)
	}

	audit := auditlog.NewWriter(cfg.AuditDir)
	defer func() {
		if err := audit.Close(); err != nil {
			logger.Warn("audit log close", zap.Error(err))
		}
	}()
	sinks := events.Multi{audit}
	if cfg.Events.Enabled() {
		kafkaSink := events.NewKafkaSink(events.NewKafkaWriter(cfg.Events.Brokers, cfg.Events.Topic, logger), logger)
		defer func() {
			if err := kafkaSink.Close(); err != nil {
				logger.Warn("event producer close", zap.Error(err))
			}
		}()
		sinks = append(sinks, kafkaSink)
	}

	engine := bank.New(bank.Config{Mode: cfg.Mode()}, store, cat,
		bank.WithLogger(logger),
		bank.WithSink(sinks),
	)

	validator, err := protocol.NewValidator()
	if err != nil {
		return fmt.Errorf("schemas: %w", err)
	}
	roster := inventory.NewRoster(cat, inventory.Layout{
		BackpackSlots: cfg.Inventory.BackpackSlots,
		BagSlots:      cfg.Inventory.BagSlots,
		StarterItems:  cfg.StarterItems,
	})
	resume := nav.NewResume(cfg.NavResumeTTL)
	wsServer := ws.NewServer(ws.Config{
		PageSize:      cfg.PageSize,
		Mode:          cfg.Mode(),
		SelectsPerSec: cfg.RateLimits.SelectsPerSec,
		Burst:         cfg.RateLimits.Burst,
	}, engine, cat, roster, resume, validator, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(r.Context(), w, db, engine, wsServer, roster, resume)
	})
	mux.HandleFunc("/v1/ws", wsServer.Handler())
	if opts.admin {
		mux.HandleFunc("/admin/v1/bank", func(w http.ResponseWriter, r *http.Request) {
			handleAdminBank(w, r, store, cfg.Mode())
		})
	}
	if opts.pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	logger.Info("reagent bank listening",
		zap.String("addr", opts.addr),
		zap.String("store", opts.store),
		zap.String("mode", cfg.Mode().String()),
		zap.Int("catalog_items", cat.Len()),
		zap.String("db", cfg.DBPath),
	)
	err = srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	// Sessions first so no new work is queued, then drain the owner lanes
	// before the deferred store close.
	wsServer.Close()
	engine.Close()
	logger.Info("reagent bank stopped")
	return err
}

func writeMetrics(ctx context.Context, w http.ResponseWriter, db *ledgerdb.Store, engine *bank.Engine, wsServer *ws.Server, roster *inventory.Roster, resume *nav.Resume) {
	fmt.Fprintf(w, "reagentbank_sessions %d\n", wsServer.Sessions())
	fmt.Fprintf(w, "reagentbank_busy_owners %d\n", engine.Busy())
	fmt.Fprintf(w, "reagentbank_characters_loaded %d\n", roster.Len())
	fmt.Fprintf(w, "reagentbank_parked_menus %d\n", resume.Len())
	if db == nil {
		return
	}
	st, err := db.Stats(ctx)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "reagentbank_ledger_owners %d\n", st.Owners)
	fmt.Fprintf(w, "reagentbank_ledger_rows %d\n", st.Rows)
	fmt.Fprintf(w, "reagentbank_ledger_quantity %d\n", st.Quantity)
}

type adminEntry struct {
	ItemID   uint32 `json:"item_id"`
	Category string `json:"category"`
	Quantity uint32 `json:"quantity"`
}

// handleAdminBank dumps one owner's stored reagents. Loopback only.
func handleAdminBank(w http.ResponseWriter, r *http.Request, store ledger.Store, mode ledger.Mode) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	account, _ := strconv.ParseUint(r.URL.Query().Get("account"), 10, 64)
	character, _ := strconv.ParseUint(r.URL.Query().Get("character"), 10, 64)
	owner := ledger.KeyFor(mode, account, character)
	if !owner.Valid() {
		http.Error(w, "account or character required", http.StatusBadRequest)
		return
	}
	entries, err := store.ScanAll(r.Context(), owner)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]adminEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, adminEntry{ItemID: e.ItemID, Category: e.Category.String(), Quantity: e.Quantity})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"owner":   owner.String(),
		"entries": out,
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}
