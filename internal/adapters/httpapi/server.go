package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"

	"github.com/bnema/numsel/internal/application"
	"github.com/bnema/numsel/internal/domain"
	"github.com/bnema/numsel/internal/ports"
)

const (
	defaultHeartbeat   = 15 * time.Second
	maxClaimBodyBytes  = 4 << 10
	unavailableBackoff = time.Second
)

// Reservations is the part of ReservationService the API drives.
type Reservations interface {
	Snapshot(ctx context.Context) (domain.Snapshot, error)
	TryClaim(ctx context.Context, id domain.SlotID, claimant string) (domain.Slot, error)
}

type Options struct {
	Reservations       Reservations
	Channel            ports.SyncChannel
	Limiter            *ClientLimiter
	Logger             hclog.Logger
	Metrics            *metrics.Metrics
	MetricsSink        *metrics.InmemSink
	TrustXForwardedFor bool
	Heartbeat          time.Duration
}

type Server struct {
	reservations Reservations
	channel      ports.SyncChannel
	limiter      *ClientLimiter
	logger       hclog.Logger
	metrics      *metrics.Metrics
	sink         *metrics.InmemSink
	trustXFF     bool
	heartbeat    time.Duration
}

func NewServer(opts Options) (*Server, error) {
	if opts.Reservations == nil {
		return nil, errors.New("reservations are required")
	}
	if opts.Channel == nil {
		return nil, errors.New("sync channel is required")
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}

	return &Server{
		reservations: opts.Reservations,
		channel:      opts.Channel,
		limiter:      opts.Limiter,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		sink:         opts.MetricsSink,
		trustXFF:     opts.TrustXForwardedFor,
		heartbeat:    opts.Heartbeat,
	}, nil
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/numbers", s.handleList).Methods(http.MethodGet)
	v1.HandleFunc("/numbers/stream", s.handleStream).Methods(http.MethodGet)
	v1.HandleFunc("/numbers/{id}/claim", s.handleClaim).Methods(http.MethodPost)
	v1.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	return r
}

type claimRequest struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.reservations.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, application.Summarize(snapshot))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil {
		if ok, retryAfter := s.limiter.Allow(s.clientKey(r)); !ok {
			w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Message: "too many claim attempts"})
			return
		}
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_id", Message: "number must be an integer"})
		return
	}

	var req claimRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxClaimBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_body", Message: "body must be {\"name\": \"...\"}"})
		return
	}

	slot, err := s.reservations.TryClaim(r.Context(), domain.SlotID(id), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, slot)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "metrics_disabled", Message: "metrics are not enabled"})
		return
	}

	summary, err := s.sink.DisplayMetrics(w, r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "metrics", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds(unavailableBackoff))
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}

	writeJSON(w, status, errorResponse{Error: code, Message: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidName):
		return http.StatusBadRequest, "invalid_name"
	case errors.Is(err, domain.ErrSlotNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrNotInitialized):
		return http.StatusNotFound, "not_initialized"
	case errors.Is(err, domain.ErrAlreadyTaken):
		return http.StatusConflict, "already_taken"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) clientKey(r *http.Request) string {
	if s.trustXFF {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
