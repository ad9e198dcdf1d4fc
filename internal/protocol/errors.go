package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Run routing/state.
	ErrRunTerminated = "E_RUN_TERMINATED"
	ErrRunNotFound   = "E_RUN_NOT_FOUND"

	// Tool layer.
	ErrValidation       = "E_VALIDATION"
	ErrPrecondition     = "E_PRECONDITION"
	ErrNoFunds          = "E_NO_FUNDS"
	ErrNoResource       = "E_NO_RESOURCE"
	ErrNotFound         = "E_NOT_FOUND"
	ErrApprovalMismatch = "E_APPROVAL_MISMATCH"
	ErrConflict         = "E_CONFLICT"
	ErrInternal         = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrRunTerminated:    {},
	ErrRunNotFound:      {},
	ErrValidation:       {},
	ErrPrecondition:     {},
	ErrNoFunds:          {},
	ErrNoResource:       {},
	ErrNotFound:         {},
	ErrApprovalMismatch: {},
	ErrConflict:         {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
