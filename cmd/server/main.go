// Package main provides the room directory server:
// - Directory (on demand): ranked token holders served through a TTL cache
// - Display names (on demand): signature-gated vanity name registry
// - Holder history (background): ranked snapshots recorded for analytics
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"rentfree/internal/directory"
	"rentfree/internal/domain"
	"rentfree/internal/observability"
	"rentfree/internal/solana"
	"rentfree/internal/storage"
	chstore "rentfree/internal/storage/clickhouse"
	"rentfree/internal/storage/memory"
	"rentfree/internal/storage/migrations"
	"rentfree/internal/storage/namecache"
	pgstore "rentfree/internal/storage/postgres"
)

// Server holds the directory service and its HTTP surface.
type Server struct {
	svc    *directory.Service
	logger *log.Logger

	// Configuration snapshot for /status
	mint           string
	maxRooms       int
	landlordTopN   int
	cacheTTL       time.Duration
	useMemory      bool
	historyEnabled bool

	started time.Time
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listen := flag.String("listen", envOr("RENTFREE_LISTEN", ":8080"), "HTTP listen address")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	mint := flag.String("mint", os.Getenv("RENTFREE_MINT"), "SPL token mint address to build the directory for")
	maxRooms := flag.Int("max-rooms", envOrInt("RENTFREE_MAX_ROOMS", 100), "Maximum number of directory entries")
	landlordTopN := flag.Int("landlord-top-n", envOrInt("RENTFREE_LANDLORD_TOP_N", 10), "Number of top holders labeled Landlord")
	cacheTTL := flag.Duration("cache-ttl", 30*time.Second, "Directory snapshot cache TTL")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (empty disables holder history)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	nameCacheSize := flag.Int("name-cache-size", 4096, "Display name cache capacity (0 disables)")
	nameCacheTTL := flag.Duration("name-cache-ttl", time.Minute, "Display name cache TTL")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *mint == "" {
		logger.Fatal("--mint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	names, history, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	if *nameCacheSize > 0 {
		names = namecache.New(names, *nameCacheSize, *nameCacheTTL)
	}

	svc := directory.New(directory.Options{
		Source:       solana.NewHTTPClient(*rpcEndpoint),
		Names:        names,
		History:      history,
		Mint:         *mint,
		MaxRooms:     *maxRooms,
		LandlordTopN: *landlordTopN,
		CacheTTL:     *cacheTTL,
		Logger:       logger,
	})

	server := &Server{
		svc:            svc,
		logger:         logger,
		mint:           *mint,
		maxRooms:       *maxRooms,
		landlordTopN:   *landlordTopN,
		cacheTTL:       *cacheTTL,
		useMemory:      *useMemory,
		historyEnabled: history != nil,
		started:        time.Now(),
	}

	httpServer := &http.Server{
		Addr:         *listen,
		Handler:      server.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		go func() {
			sig := <-sigCh
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		}()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Graceful shutdown failed: %v", err)
		}
		cancel()
	}()

	logger.Printf("Serving directory for mint %s on %s (maxRooms=%d, landlordTopN=%d, cacheTTL=%v)",
		*mint, *listen, *maxRooms, *landlordTopN, *cacheTTL)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates the display name store and, when configured, the
// holder history store. Migrations run before any store is handed out.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.DisplayNameStore, storage.HolderHistoryStore, func(), error) {
	if useMemory {
		return memory.NewDisplayNameStore(), nil, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	names := pgstore.NewDisplayNameStore(pool)

	if clickhouseDSN == "" {
		return names, nil, func() { pool.Close() }, nil
	}

	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	history := chstore.NewHolderHistoryStore(chConn)

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return names, history, cleanup, nil
}

// routes builds the HTTP mux with CORS applied to every handler.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/directory", s.handleDirectory)
	mux.HandleFunc("/display-name", s.handleDisplayName)
	mux.HandleFunc("/history", s.handleHistory)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	return corsMiddleware(mux)
}

// corsMiddleware allows browser clients from any origin to use the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// DirectoryResponse is the JSON response for the /directory endpoint.
type DirectoryResponse struct {
	Mint       string                  `json:"mint"`
	CapturedAt int64                   `json:"capturedAt"`
	Cached     bool                    `json:"cached"`
	Entries    []domain.RoomAssignment `json:"entries"`
}

// handleDirectory serves the ranked holder directory. The mint query
// parameter overrides the configured mint.
func (s *Server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, cached, err := s.svc.Directory(r.Context(), r.URL.Query().Get("mint"))
	if err != nil {
		if errors.Is(err, solana.ErrRateLimited) {
			s.logger.Printf("Directory request rate limited upstream: %v", err)
			writeError(w, http.StatusServiceUnavailable, "upstream rate limited, retry later")
			return
		}
		s.logger.Printf("Directory request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	entries := snap.Assignments
	if entries == nil {
		entries = []domain.RoomAssignment{}
	}

	writeJSON(w, http.StatusOK, DirectoryResponse{
		Mint:       snap.Mint,
		CapturedAt: snap.CapturedAt,
		Cached:     cached,
		Entries:    entries,
	})
}

// DisplayNameRequest is the JSON body for POST /display-name.
type DisplayNameRequest struct {
	WalletAddress string `json:"walletAddress"`
	DisplayName   string `json:"displayName"`
	Message       string `json:"message"`
	Signature     string `json:"signature"` // base64-encoded detached signature
}

// DisplayNameResponse is the JSON response for a successful name update.
type DisplayNameResponse struct {
	OK            bool   `json:"ok"`
	WalletAddress string `json:"walletAddress"`
	DisplayName   string `json:"displayName"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// handleDisplayName applies a signed display name update.
func (s *Server) handleDisplayName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req DisplayNameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "signature must be base64")
		return
	}

	rec, err := s.svc.UpdateDisplayName(r.Context(), req.WalletAddress, req.DisplayName, req.Message, signature)
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, directory.ErrAuth):
			writeError(w, http.StatusUnauthorized, "signature verification failed")
		default:
			s.logger.Printf("Display name update failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, DisplayNameResponse{
		OK:            true,
		WalletAddress: rec.Wallet,
		DisplayName:   rec.Name,
		UpdatedAt:     rec.UpdatedAt,
	})
}

// handleHistory serves a wallet's historical room assignments.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	wallet := r.URL.Query().Get("wallet")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	entries, err := s.svc.History(r.Context(), wallet, limit)
	if err != nil {
		if errors.Is(err, directory.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Printf("History request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []*domain.HolderHistoryEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	Mint           string `json:"mint"`
	MaxRooms       int    `json:"max_rooms"`
	LandlordTopN   int    `json:"landlord_top_n"`
	CacheTTL       string `json:"cache_ttl"`
	UseMemory      bool   `json:"use_memory"`
	HistoryEnabled bool   `json:"history_enabled"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:         "running",
		Uptime:         time.Since(s.started).String(),
		Mint:           s.mint,
		MaxRooms:       s.maxRooms,
		LandlordTopN:   s.landlordTopN,
		CacheTTL:       s.cacheTTL.String(),
		UseMemory:      s.useMemory,
		HistoryEnabled: s.historyEnabled,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
