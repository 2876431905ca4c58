package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Tank routing/state.
	ErrBusy = "E_BUSY"

	// Catch results.
	ErrNotActive      = "E_NOT_ACTIVE"
	ErrUnknownSpecies = "E_UNKNOWN_SPECIES"
	ErrMismatch       = "E_MISMATCH"
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBusy:            {},
	ErrNotActive:       {},
	ErrUnknownSpecies:  {},
	ErrMismatch:        {},
	ErrBadRequest:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
