package rpc

import (
	"errors"
	"net/http"

	"rewardchain/core"
	"rewardchain/core/types"
	"rewardchain/native/bank"
	nativecommon "rewardchain/native/common"
	"rewardchain/native/rewards"
)

// classify maps a node error to an HTTP status and JSON-RPC code.
func classify(err error) (int, int) {
	switch {
	case errors.Is(err, rewards.ErrAlreadyClaimed):
		return http.StatusConflict, codeAlreadyClaimed
	case errors.Is(err, core.ErrNonceMismatch):
		return http.StatusConflict, codeNonceMismatch
	case errors.Is(err, rewards.ErrConfigExists),
		errors.Is(err, rewards.ErrRewardMintExists),
		errors.Is(err, rewards.ErrProfileExists),
		errors.Is(err, bank.ErrMintExists):
		return http.StatusConflict, codeConflict
	case errors.Is(err, rewards.ErrUnauthorized), errors.Is(err, bank.ErrMintUnauthorized):
		return http.StatusForbidden, codeForbidden
	case core.IsNotFound(err):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, codeModulePaused
	case errors.Is(err, rewards.ErrQuotaExceeded):
		return http.StatusTooManyRequests, codeQuotaExceeded
	case errors.Is(err, core.ErrInvalidPayload),
		errors.Is(err, core.ErrUnknownTxType),
		errors.Is(err, core.ErrInvalidChainID),
		errors.Is(err, types.ErrMissingSignature),
		errors.Is(err, rewards.ErrFieldTooLong),
		errors.Is(err, rewards.ErrInvalidUser),
		errors.Is(err, bank.ErrInvalidRecipient),
		errors.Is(err, bank.ErrBalanceOverflow):
		return http.StatusBadRequest, codeInvalidParams
	default:
		return http.StatusInternalServerError, codeServerError
	}
}
