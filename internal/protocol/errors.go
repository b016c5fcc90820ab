package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Request layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnknownPlayer = "E_UNKNOWN_PLAYER"
	ErrNotFound      = "E_NOT_FOUND"
	ErrConflict      = "E_CONFLICT"
	ErrNoRoom        = "E_NO_CLAIMABLE_ROOM"
	ErrTimeout       = "E_TIMEOUT"
	ErrHalted        = "E_HALTED"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrUnknownPlayer:   {},
	ErrNotFound:        {},
	ErrConflict:        {},
	ErrNoRoom:          {},
	ErrTimeout:         {},
	ErrHalted:          {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
