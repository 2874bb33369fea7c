package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
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
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"landsale/core"
	"landsale/indexer"
	"landsale/observability"
	"landsale/observability/logging"
)

const (
	jsonRPCVersion = "2.0"

	codeParseError      = -32700
	codeInvalidRequest  = -32600
	codeMethodNotFound  = -32601
	codeInvalidParams   = -32602
	codeServerError     = -32000
	codeUnauthorized    = -32001
	codeConfiguration   = -32010
	codePrecondition    = -32011
	codeCollaborator    = -32012
	codeRateLimited     = -32020
	defaultMaxBodyBytes = 1 << 20
)

// RPCRequest is a JSON-RPC 2.0 request. Every method takes a single object
// parameter.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is the error object of a failed call.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// MintIndex serves historical mint receipts.
type MintIndex interface {
	ListMints(ctx context.Context, filter indexer.MintFilter) ([]indexer.MintRecord, error)
}

// ServerConfig carries the listener settings resolved by the daemon.
type ServerConfig struct {
	// AuthToken is the static bearer token accepted for mutating calls.
	AuthToken string
	// JWTSecret enables HS256 bearer tokens when non-empty. JWTIssuer must be
	// set alongside it.
	JWTSecret []byte
	JWTIssuer string

	MintRequestsPerMinute float64
	MintBurst             int
	TrustProxyHeaders     bool
	MaxBodyBytes          int64
	ReadHeaderTimeout     time.Duration
	WriteTimeout          time.Duration
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

type method struct {
	handler handlerFunc
	auth    bool
	limited bool
}

// Server exposes the sale and its reference ledgers over JSON-RPC.
type Server struct {
	node    *core.Node
	mints   MintIndex
	cfg     ServerConfig
	logger  *slog.Logger
	limiter *clientLimiter
	methods map[string]method

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewServer constructs a server. mints may be nil when indexing is disabled.
func NewServer(node *core.Node, mints MintIndex, cfg ServerConfig) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.MintRequestsPerMinute <= 0 {
		cfg.MintRequestsPerMinute = 60
	}
	if cfg.MintBurst <= 0 {
		cfg.MintBurst = 10
	}
	s := &Server{
		node:    node,
		mints:   mints,
		cfg:     cfg,
		logger:  slog.Default(),
		limiter: newClientLimiter(cfg.MintRequestsPerMinute, cfg.MintBurst),
	}
	s.methods = s.routes()
	return s
}

// SetLogger replaces the server logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Handler returns the HTTP handler serving JSON-RPC on / and liveness on
// /healthz.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		root, height := s.node.StateRoot()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "ok",
			"stateRoot": root.Hex(),
			"height":    height,
		})
	})
	r.Post("/", s.handle)
	return otelhttp.NewHandler(r, "landsale.rpc")
}

// Serve accepts connections on the listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()
	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
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

	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	module := moduleOf(req.Method)
	started := time.Now()

	if m.auth {
		if authErr := s.requireAuth(r); authErr != nil {
			s.logger.Warn("rpc authentication rejected",
				logging.MaskField("method", req.Method),
				logging.MaskField("requestId", requestID),
				logging.MaskField("reason", authErr.Message),
				logging.MaskCredential("authorization", r.Header.Get("Authorization")),
				logging.MaskField("client", s.clientSource(r)))
			observability.ModuleMetrics().Observe(module, req.Method, authErr.Code, time.Since(started))
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	if m.limited {
		source := s.clientSource(r)
		if !s.limiter.allow(source) {
			s.logger.Info("mint throttled",
				logging.MaskField("method", req.Method),
				logging.MaskField("requestId", requestID),
				logging.MaskField("client", source))
			observability.ModuleMetrics().RecordThrottle(module, "rate_limit")
			observability.ModuleMetrics().Observe(module, req.Method, codeRateLimited, time.Since(started))
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "mint rate limit exceeded", nil)
			return
		}
	}

	result, err := m.handler(r.Context(), req.Params)
	if err != nil {
		status, rpcErr := toRPCError(err)
		observability.ModuleMetrics().Observe(module, req.Method, rpcErr.Code, time.Since(started))
		if rpcErr.Code == codeServerError {
			s.logger.Error("rpc call failed",
				logging.MaskField("method", req.Method),
				logging.MaskField("requestId", requestID),
				slog.Any("error", err))
		}
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	observability.ModuleMetrics().Observe(module, req.Method, 0, time.Since(started))
	writeResult(w, req.ID, result)
}

func moduleOf(methodName string) string {
	if idx := strings.IndexByte(methodName, '_'); idx > 0 {
		return methodName[:idx]
	}
	return methodName
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.WriteHeader(status)
	resp := RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.cfg.AuthToken == "" && len(s.cfg.JWTSecret) == 0 {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if s.cfg.AuthToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) == 1 {
		return nil
	}
	if len(s.cfg.JWTSecret) > 0 {
		if err := s.verifyJWT(token); err == nil {
			return nil
		}
	}
	return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
}

func (s *Server) verifyJWT(raw string) error {
	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.cfg.JWTSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.JWTIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("invalid token")
	}
	return nil
}

func (s *Server) clientSource(r *http.Request) string {
	if s.cfg.TrustProxyHeaders {
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			parts := strings.Split(forwarded, ",")
			if first := strings.TrimSpace(parts[0]); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
