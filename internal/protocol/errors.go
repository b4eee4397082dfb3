package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Session layer.
	ErrConflict  = "E_CONFLICT"
	ErrRateLimit = "E_RATE_LIMIT"

	// Menu selections.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrUnavailable   = "E_UNAVAILABLE"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrConflict:        {},
	ErrRateLimit:       {},
	ErrBadRequest:      {},
	ErrInvalidTarget:   {},
	ErrUnavailable:     {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
