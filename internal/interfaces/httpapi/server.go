package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradefeed/internal/application"
	"tradefeed/internal/config"
	"tradefeed/internal/domain"
)

// TransactionSource serves both aggregation modes.
type TransactionSource interface {
	TransactionsByAddress(ctx context.Context, address string) ([]domain.ClassifiedTransaction, error)
	StreamByFID(ctx context.Context, fid uint64) <-chan application.StreamEvent
}

// FollowSyncer mirrors a follow list into the store and returns the
// profiles.
type FollowSyncer interface {
	SyncFollows(ctx context.Context, fid uint64) ([]domain.UserProfile, error)
}

// StorePinger reports identity store reachability for readiness checks.
type StorePinger interface {
	Ping(ctx context.Context) error
}

type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

type Server struct {
	cfg       config.Config
	source    TransactionSource
	syncer    FollowSyncer
	store     StorePinger
	metrics   *Metrics
	buildInfo BuildInfo
}

func NewServer(cfg config.Config, source TransactionSource, syncer FollowSyncer, store StorePinger, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if source == nil || syncer == nil || store == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{cfg: cfg, source: source, syncer: syncer, store: store, metrics: metrics, buildInfo: buildInfo}, nil
}

func (s *Server) MetricsObserver() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/transactions", s.handleTransactions)
	mux.HandleFunc("/following", s.handleFollowing)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/state", s.handleState)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleTransactions serves both lookup modes: ?address= returns the full
// classified history as one JSON array, ?fid= upgrades to a server-sent
// event stream that surfaces results wallet by wallet.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	addressParam := strings.TrimSpace(query.Get("address"))
	fidParam := strings.TrimSpace(query.Get("fid"))

	switch {
	case addressParam != "":
		s.metrics.OnAddressRequest()
		transactions, err := s.source.TransactionsByAddress(r.Context(), addressParam)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "aggregation failed")
			return
		}
		respondJSON(w, http.StatusOK, transactions)
	case fidParam != "":
		fid, err := strconv.ParseUint(fidParam, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid fid")
			return
		}
		s.streamTransactions(w, r, fid)
	default:
		respondError(w, http.StatusBadRequest, "fid or address is required")
	}
}

func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request) {
	fidParam := strings.TrimSpace(r.URL.Query().Get("fid"))
	if fidParam == "" {
		respondError(w, http.StatusBadRequest, "fid is required")
		return
	}
	fid, err := strconv.ParseUint(fidParam, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid fid")
		return
	}

	profiles, err := s.syncer.SyncFollows(r.Context(), fid)
	if err != nil {
		respondError(w, http.StatusBadGateway, "follow sync failed")
		return
	}
	s.metrics.OnSyncCompleted(len(profiles))
	if profiles == nil {
		profiles = []domain.UserProfile{}
	}
	respondJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.metrics.WriteExposition(w)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"http_addr":        s.cfg.HTTPAddr,
		"chains":           s.cfg.Chains,
		"tx_page_size":     s.cfg.TxPageSize,
		"follow_page_size": s.cfg.FollowPageSize,
		"provider_rate":    s.cfg.ProviderRate,
		"provider_burst":   s.cfg.ProviderBurst,
		"min_usd_value":    s.cfg.MinUSDValue,
		"min_gas_quote":    s.cfg.MinGasQuote,
		"kafka_enabled":    len(s.cfg.KafkaBrokers) > 0,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
