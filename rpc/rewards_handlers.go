package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"rewardchain/core/types"
	"rewardchain/crypto"
	"rewardchain/explorer"
	"rewardchain/native/rewards"
	"rewardchain/observability"
)

type ConfigResult struct {
	Address         string `json:"address"`
	Authority       string `json:"authority"`
	TotalUsers      uint64 `json:"totalUsers"`
	Bump            uint8  `json:"bump"`
	MintInitialized bool   `json:"mintInitialized"`
	RewardMint      string `json:"rewardMint,omitempty"`
	MintBump        uint8  `json:"mintBump"`
	MintAuthBump    uint8  `json:"mintAuthBump"`
	Decimals        uint8  `json:"decimals"`
}

type UserRecordResult struct {
	Address         string `json:"address"`
	User            string `json:"user"`
	LifetimeMinutes uint64 `json:"lifetimeMinutes"`
	LastUpdated     uint64 `json:"lastUpdated"`
	Bump            uint8  `json:"bump"`
}

type ProfileResult struct {
	Address   string `json:"address"`
	User      string `json:"user"`
	Nickname  string `json:"nickname"`
	Telegram  string `json:"tg"`
	XHandle   string `json:"xHandle"`
	AvatarCID string `json:"avatarCid"`
	Bump      uint8  `json:"bump"`
}

type BalanceResult struct {
	User     string `json:"user"`
	Mint     string `json:"mint"`
	Balance  uint64 `json:"balance"`
	Decimals uint8  `json:"decimals"`
	Supply   uint64 `json:"supply"`
}

type NonceResult struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

type DerivedAddressesResult struct {
	Program string `json:"program"`
	rewards.Addresses
	UserRecord     string `json:"userRecord,omitempty"`
	UserRecordBump uint8  `json:"userRecordBump,omitempty"`
	Profile        string `json:"profile,omitempty"`
	ProfileBump    uint8  `json:"profileBump,omitempty"`
}

func accountString(addr [crypto.AddressLength]byte) string {
	return crypto.MustNewAddress(crypto.RWDPrefix, addr[:]).String()
}

func parseAccountParam(raw json.RawMessage) ([crypto.AddressLength]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return [crypto.AddressLength]byte{}, fmt.Errorf("address must be a string: %w", err)
	}
	return crypto.ParseAccount(s)
}

// requireAccount decodes the single address parameter shared by the query
// methods, writing the error response itself on failure.
func requireAccount(w http.ResponseWriter, req *RPCRequest) ([crypto.AddressLength]byte, bool) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "address parameter required", nil)
		return [crypto.AddressLength]byte{}, false
	}
	addr, err := parseAccountParam(req.Params[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return [crypto.AddressLength]byte{}, false
	}
	return addr, true
}

func (s *Server) writeNodeError(w http.ResponseWriter, req *RPCRequest, err error, data interface{}) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("rpc request failed",
			slog.String("method", req.Method),
			slog.String("error", err.Error()))
	}
	writeError(w, status, req.ID, code, err.Error(), data)
}

func (s *Server) handleSendTransaction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "transaction parameter required", nil)
		return
	}
	var tx types.Transaction
	if err := json.Unmarshal(req.Params[0], &tx); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid transaction format", err.Error())
		return
	}
	if tx.ChainID != s.node.ChainID() {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "transaction chainId does not match network", tx.ChainID)
		return
	}
	if _, err := tx.From(); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid transaction signature", err.Error())
		return
	}
	source := s.clientSource(r)
	if !s.limiter.allow(source) {
		observability.ModuleMetrics().RecordThrottle(moduleName, "rate_limit")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "transaction rate limit exceeded", source)
		return
	}

	receipt, err := s.node.SubmitTransaction(r.Context(), &tx)
	if err != nil {
		var data interface{}
		if receipt != nil {
			data = receipt
		}
		s.writeNodeError(w, req, err, data)
		return
	}
	s.logger.Debug("transaction accepted",
		slog.String("requestId", RequestIDFromContext(r.Context())),
		slog.String("txhash", receipt.TxHash),
		slog.String("type", receipt.Type))
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "transaction hash parameter required", nil)
		return
	}
	var raw string
	if err := json.Unmarshal(req.Params[0], &raw); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "hash must be a string", err.Error())
		return
	}
	hash, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil || len(hash) != 32 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "hash must be 32 hex encoded bytes", raw)
		return
	}
	receipt, err := s.node.Receipt(hash)
	if err != nil {
		s.writeNodeError(w, req, err, nil)
		return
	}
	if receipt == nil {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "receipt not found", raw)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	cfg, err := s.node.Config()
	if err != nil {
		s.writeNodeError(w, req, err, nil)
		return
	}
	addrs, err := rewards.DeriveAddresses()
	if err != nil {
		s.writeNodeError(w, req, err, nil)
		return
	}
	result := ConfigResult{
		Address:         addrs.Config.String(),
		Authority:       accountString(cfg.Authority),
		TotalUsers:      cfg.TotalUsers,
		Bump:            cfg.Bump,
		MintInitialized: cfg.MintInitialized(),
		MintBump:        cfg.MintBump,
		MintAuthBump:    cfg.MintAuthBump,
		Decimals:        cfg.Decimals,
	}
	if cfg.MintInitialized() {
		result.RewardMint = cfg.RewardMint.String()
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetUserRecord(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	user, ok := requireAccount(w, req)
	if !ok {
		return
	}
	record, err := s.node.UserRecord(user)
	if err != nil {
		s.writeNodeError(w, req, err, nil)
		return
	}
	addr, _, err := rewards.UserRecordAddress(user)
	if err != nil {
		s.writeNodeError(w, req, err, nil)
		return
	}
	writeResult(w, req.ID, UserRecordResult{
		Address:         addr.String(),
		User:            accountString(record.User),
		LifetimeMinutes: record.LifetimeMinutes,
		LastUpdated:     record.LastUpdated,
		Bump:            record.Bump,
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	user, ok := requireAccount(w, req)
	if !ok {
		return
	}
	profile, err := s.node.Profile(user)
	if err != nil {
		s.writeNodeError(w, req, err, nil)
		return
	}
	addr, _, err := rewards.ProfileAddress(user)
	if err != nil {
		s.writeNodeError(w, req, err, nil)
		return
	}
	writeResult(w, req.ID, ProfileResult{
		Address:   addr.String(),
		User:      accountString(profile.User),
		Nickname:  profile.Nickname,
		Telegram:  profile.Telegram,
		XHandle:   profile.XHandle,
		AvatarCID: profile.AvatarCID,
		Bump:      profile.Bump,
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	user, ok := requireAccount(w, req)
	if !ok {
		return
	}
	balance, err := s.node.RewardBalance(user)
	if err != nil {
		s.writeNodeError(w, req, err, nil)
		return
	}
	token, err := s.node.RewardSupply()
	if err != nil {
		s.writeNodeError(w, req, err, nil)
		return
	}
	writeResult(w, req.ID, BalanceResult{
		User:     accountString(user),
		Mint:     token.Mint.String(),
		Balance:  balance,
		Decimals: token.Decimals,
		Supply:   token.Supply,
	})
}

func (s *Server) handleGetNonce(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, ok := requireAccount(w, req)
	if !ok {
		return
	}
	nonce, err := s.node.Nonce(addr)
	if err != nil {
		s.writeNodeError(w, req, err, nil)
		return
	}
	writeResult(w, req.ID, NonceResult{Address: accountString(addr), Nonce: nonce})
}

func (s *Server) handleDeriveAddresses(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "at most one address parameter accepted", nil)
		return
	}
	addrs, err := rewards.DeriveAddresses()
	if err != nil {
		s.writeNodeError(w, req, err, nil)
		return
	}
	result := DerivedAddressesResult{
		Program:   "0x" + hex.EncodeToString(rewards.ProgramID),
		Addresses: *addrs,
	}
	if len(req.Params) == 1 {
		user, err := parseAccountParam(req.Params[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
			return
		}
		record, recordBump, err := rewards.UserRecordAddress(user)
		if err != nil {
			s.writeNodeError(w, req, err, nil)
			return
		}
		profile, profileBump, err := rewards.ProfileAddress(user)
		if err != nil {
			s.writeNodeError(w, req, err, nil)
			return
		}
		result.UserRecord, result.UserRecordBump = record.String(), recordBump
		result.Profile, result.ProfileBump = profile.String(), profileBump
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleMintHistory(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 || len(req.Params) > 2 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected [address, limit?]", nil)
		return
	}
	user, err := parseAccountParam(req.Params[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	limit := 0
	if len(req.Params) == 2 {
		if err := json.Unmarshal(req.Params[1], &limit); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "limit must be a non-negative integer", nil)
			return
		}
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "mint history index not configured", nil)
		return
	}
	mints, err := s.history.MintHistory(r.Context(), user, limit)
	if err != nil {
		s.writeNodeError(w, req, err, nil)
		return
	}
	if mints == nil {
		mints = []explorer.Mint{}
	}
	writeResult(w, req.ID, mints)
}
