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
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"custody/core"
	"custody/core/types"
	"custody/native/bank"
	"custody/native/common"
	"custody/native/vault"
	"custody/rpc/middleware"
)

const (
	jsonRPCVersion  = "2.0"
	defaultMaxBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeDuplicateTx    = -32010
	codeAccountInUse   = -32011
	codeTxRejected     = -32012
	codeModulePaused   = -32013
)

// Processor is the subset of the node the RPC server drives.
type Processor interface {
	ApplyTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	Account(addr solana.PublicKey) (*types.Account, error)
	Vault(addr solana.PublicKey) (*vault.Vault, bool, error)
	Schedule(addr solana.PublicKey) (*vault.Schedule, bool, error)
	TokenAccount(addr solana.PublicKey) (*types.TokenAccount, bool, error)
	DeriveVault(path []byte) (*core.DerivedVault, error)
	DeriveSchedule(eventID uint64) (*core.Derived, error)
	ProgramID() solana.PublicKey
	TokenProgram() solana.PublicKey
	Pauses() *common.Pauses
}

// Options configures the HTTP surface.
type Options struct {
	AuthToken      string
	MaxBodyBytes   int64
	RateLimit      middleware.RateLimit
	TrustedProxies []string
	ServiceName    string
	LogRequests    bool
}

type Server struct {
	proc      Processor
	logger    *slog.Logger
	authToken string
	maxBytes  int64
	limiter   *middleware.RateLimiter
	obs       *middleware.Observability
	service   string
}

func NewServer(proc Processor, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBytes
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "custodyd"
	}
	return &Server{
		proc:      proc,
		logger:    logger,
		authToken: strings.TrimSpace(opts.AuthToken),
		maxBytes:  opts.MaxBodyBytes,
		limiter:   middleware.NewRateLimiter(opts.RateLimit, opts.TrustedProxies, logger),
		obs: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: opts.ServiceName,
			LogRequests: opts.LogRequests,
		}, logger),
		service: opts.ServiceName,
	}
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", s.obs.MetricsHandler())
	r.Group(func(rr chi.Router) {
		rr.Use(s.limiter.Middleware)
		rr.Use(s.obs.Middleware("rpc"))
		rr.Post("/", s.handle)
	})
	return otelhttp.NewHandler(r, s.service)
}

// Serve runs an HTTP server on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc: shutdown: %w", err)
		}
		return nil
	}
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

// writeTxError maps a processor failure onto a JSON-RPC error. Vault
// classifications surface their numeric code so clients can branch on it.
func writeTxError(w http.ResponseWriter, id interface{}, err error) {
	if code, ok := vault.Code(err); ok {
		writeError(w, http.StatusBadRequest, id, int(code), code.String(), err.Error())
		return
	}
	switch {
	case errors.Is(err, core.ErrReplay):
		writeError(w, http.StatusConflict, id, codeDuplicateTx, "transaction already applied", nil)
	case errors.Is(err, core.ErrAccountInUse):
		writeError(w, http.StatusConflict, id, codeAccountInUse, "account in use, retry", nil)
	case errors.Is(err, core.ErrUnknownTxType):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, "unsupported transaction type", err.Error())
	case errors.Is(err, common.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, id, codeModulePaused, "module paused", err.Error())
	case errors.Is(err, bank.ErrInsufficientFunds),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrAccountExists),
		errors.Is(err, bank.ErrTokenAccountNotFound),
		errors.Is(err, bank.ErrTokenOwnerMismatch),
		errors.Is(err, bank.ErrMintMismatch),
		errors.Is(err, bank.ErrSameAccount):
		writeError(w, http.StatusBadRequest, id, codeTxRejected, "transaction rejected", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, id, codeServerError, "request cancelled", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal error", err.Error())
	}
}

// handle decodes a JSON-RPC request and routes it to the method handler.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.maxBytes)
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
			message = fmt.Sprintf("request body exceeds %d bytes", s.maxBytes)
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

	switch req.Method {
	case "custody_sendTransaction":
		if s.authToken != "" {
			if authErr := s.requireAuth(r); authErr != nil {
				writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
				return
			}
		}
		s.handleSendTransaction(w, r, req)
	case "custody_getAccount":
		s.handleGetAccount(w, r, req)
	case "custody_getTokenAccount":
		s.handleGetTokenAccount(w, r, req)
	case "custody_getVault":
		s.handleGetVault(w, r, req)
	case "custody_getSchedule":
		s.handleGetSchedule(w, r, req)
	case "custody_deriveVault":
		s.handleDeriveVault(w, r, req)
	case "custody_deriveSchedule":
		s.handleDeriveSchedule(w, r, req)
	case "custody_getProgram":
		s.handleGetProgram(w, r, req)
	case "custody_setPaused":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetPaused(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method), nil)
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
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
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}
