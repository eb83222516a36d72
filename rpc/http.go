package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rewardchain/core"
	"rewardchain/crypto"
	"rewardchain/explorer"
	"rewardchain/observability"
)

const (
	jsonRPCVersion           = "2.0"
	maxRequestBytes          = 1 << 20 // 1 MiB
	defaultReadHeaderTimeout = 5 * time.Second
	moduleName               = "rewards"
)

// CodeNotFound is returned when the requested record does not exist.
const CodeNotFound = -32004

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeForbidden      = -32003
	codeNotFound       = CodeNotFound
	codeConflict       = -32009
	codeNonceMismatch  = -32010
	codeAlreadyClaimed = -32011
	codeRateLimited    = -32020
	codeModulePaused   = -32021
	codeQuotaExceeded  = -32022
)

// History serves the indexed mint history of a user.
type History interface {
	MintHistory(ctx context.Context, user [crypto.AddressLength]byte, limit int) ([]explorer.Mint, error)
}

// ServerConfig controls authentication and admission for the RPC server.
type ServerConfig struct {
	// AuthToken is a static bearer token accepted for write methods.
	AuthToken string
	// JWTSecret enables HS256 bearer tokens for write methods.
	JWTSecret string
	JWTIssuer string
	// RateLimitPerSecond bounds transaction submissions per client source.
	// Zero disables limiting.
	RateLimitPerSecond float64
	RateBurst          int
	// TrustedProxies lists peer addresses whose X-Real-IP and X-Forwarded-For
	// headers identify the client. Headers from other peers are ignored.
	TrustedProxies    []string
	ReadHeaderTimeout time.Duration
	Logger            *slog.Logger
}

type Server struct {
	node    *core.Node
	history History
	cfg     ServerConfig
	auth    *authenticator
	limiter *sourceLimiter
	proxies map[string]struct{}
	logger  *slog.Logger

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewServer creates the JSON-RPC server. history may be nil when no indexer
// is configured; rewards_mintHistory then reports the indexer as unavailable.
func NewServer(node *core.Node, history History, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	return &Server{
		node:    node,
		history: history,
		cfg:     cfg,
		auth:    newAuthenticator(cfg.AuthToken, cfg.JWTSecret, cfg.JWTIssuer),
		limiter: newSourceLimiter(cfg.RateLimitPerSecond, cfg.RateBurst),
		proxies: trustedProxySet(cfg.TrustedProxies),
		logger:  logger,
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.Post("/", s.handle)
	return otelhttp.NewHandler(r, "rpc")
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()
	s.logger.Info("json-rpc server listening", slog.String("addr", listener.Addr().String()))
	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	w = recorder
	method := "unknown"
	defer func() {
		observability.ModuleMetrics().Observe(moduleName, method, recorder.status, time.Since(start))
	}()

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	method = req.Method

	switch req.Method {
	case "rewards_sendTransaction":
		if authErr := s.auth.check(r); authErr != nil {
			observability.ModuleMetrics().RecordThrottle(moduleName, "unauthorized")
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSendTransaction(w, r, req)
	case "rewards_getReceipt":
		s.handleGetReceipt(w, r, req)
	case "rewards_getConfig":
		s.handleGetConfig(w, r, req)
	case "rewards_getUserRecord":
		s.handleGetUserRecord(w, r, req)
	case "rewards_getProfile":
		s.handleGetProfile(w, r, req)
	case "rewards_getBalance":
		s.handleGetBalance(w, r, req)
	case "rewards_getNonce":
		s.handleGetNonce(w, r, req)
	case "rewards_deriveAddresses":
		s.handleDeriveAddresses(w, r, req)
	case "rewards_mintHistory":
		s.handleMintHistory(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}

func trustedProxySet(entries []string) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if host := canonicalHost(entry); host != "" {
			set[host] = struct{}{}
		}
	}
	return set
}

// canonicalHost strips an optional port and normalises IP spelling.
func canonicalHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return raw
}

// clientSource identifies the caller for rate limiting. Proxy headers are
// only honoured when the connecting peer is a trusted proxy.
func (s *Server) clientSource(r *http.Request) string {
	peer := canonicalHost(r.RemoteAddr)
	if peer == "" {
		peer = r.RemoteAddr
	}
	if _, trusted := s.proxies[peer]; !trusted {
		return peer
	}
	if real := canonicalHost(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if candidate := canonicalHost(parts[0]); candidate != "" {
			return candidate
		}
	}
	return peer
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
