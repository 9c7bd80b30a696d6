package rpc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"custody/core"
	"custody/core/types"
	"custody/crypto"
	"custody/native/vault"
)

func (s *Server) handleSendTransaction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "transaction parameter required", nil)
		return
	}
	var tx types.Transaction
	if err := json.Unmarshal(req.Params[0], &tx); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid transaction format", err.Error())
		return
	}
	receipt, err := s.proc.ApplyTransaction(r.Context(), &tx)
	if err != nil {
		s.logger.Debug("transaction failed", slog.String("type", tx.Type.String()), slog.Any("error", err))
		writeTxError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

// addressParam decodes params[0] as a base58 address.
func addressParam(req *RPCRequest) (solana.PublicKey, error) {
	if len(req.Params) != 1 {
		return solana.PublicKey{}, fmt.Errorf("address parameter required")
	}
	var raw string
	if err := json.Unmarshal(req.Params[0], &raw); err != nil {
		return solana.PublicKey{}, fmt.Errorf("address must be a string: %w", err)
	}
	return crypto.ParseAddress(raw)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, err := addressParam(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	acc, err := s.proc.Account(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load account", err.Error())
		return
	}
	writeResult(w, req.ID, newAccountResult(acc))
}

func (s *Server) handleGetTokenAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, err := addressParam(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ta, ok, err := s.proc.TokenAccount(addr)
	if err != nil {
		writeTxError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, int(vault.CodeInvalidTokenAccount), "token account not found", addr.String())
		return
	}
	writeResult(w, req.ID, newTokenAccountResult(ta))
}

func (s *Server) handleGetVault(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, err := addressParam(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	v, ok, err := s.proc.Vault(addr)
	if err != nil {
		writeTxError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, int(vault.CodeInvalidAccount), "vault not found", addr.String())
		return
	}
	signer, err := crypto.CreateAddress(s.proc.ProgramID(), crypto.VaultSignerSeed, v.Address[:], v.SignerNonce)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to derive vault signer", err.Error())
		return
	}
	writeResult(w, req.ID, newVaultResult(v, signer))
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, err := addressParam(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	sched, ok, err := s.proc.Schedule(addr)
	if err != nil {
		writeTxError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, int(vault.CodeInvalidAccount), "schedule not found", addr.String())
		return
	}
	writeResult(w, req.ID, newScheduleResult(sched))
}

func (s *Server) handleDeriveVault(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "path parameter required", nil)
		return
	}
	var path string
	if err := json.Unmarshal(req.Params[0], &path); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "path must be a string", err.Error())
		return
	}
	derived, err := s.proc.DeriveVault([]byte(path))
	if err != nil {
		writeTxError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, derived)
}

// parseEventID accepts a JSON number or a decimal string.
func parseEventID(raw json.RawMessage) (uint64, error) {
	var direct uint64
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, fmt.Errorf("invalid event id")
	}
	return strconv.ParseUint(strings.TrimSpace(text), 10, 64)
}

func (s *Server) handleDeriveSchedule(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "event id parameter required", nil)
		return
	}
	eventID, err := parseEventID(req.Params[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid event id", err.Error())
		return
	}
	derived, err := s.proc.DeriveSchedule(eventID)
	if err != nil {
		writeTxError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, derived)
}

var pausableModules = []string{vault.ModuleName, core.BankModule}

func (s *Server) pausedModules() []string {
	paused := make([]string, 0, len(pausableModules))
	for _, module := range pausableModules {
		if s.proc.Pauses().IsPaused(module) {
			paused = append(paused, module)
		}
	}
	sort.Strings(paused)
	return paused
}

func (s *Server) handleGetProgram(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, ProgramResult{
		ProgramID:    s.proc.ProgramID().String(),
		TokenProgram: s.proc.TokenProgram().String(),
		Paused:       s.pausedModules(),
	})
}

func (s *Server) handleSetPaused(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params struct {
		Module string `json:"module"`
		Paused bool   `json:"paused"`
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	module := strings.ToLower(strings.TrimSpace(params.Module))
	known := false
	for _, candidate := range pausableModules {
		if candidate == module {
			known = true
			break
		}
	}
	if !known {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("unknown module %q", params.Module), nil)
		return
	}
	s.proc.Pauses().Set(module, params.Paused)
	s.logger.Warn("module pause toggled", slog.String("module", module), slog.Bool("paused", params.Paused))
	writeResult(w, req.ID, ProgramResult{
		ProgramID:    s.proc.ProgramID().String(),
		TokenProgram: s.proc.TokenProgram().String(),
		Paused:       s.pausedModules(),
	})
}
