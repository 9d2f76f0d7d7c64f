package wire

// Error codes carried in error frames. All are recoverable: they are reported
// back to the originating connection and never terminate the process.
const (
	CodeIllegalMove       = "illegal_move"
	CodeNotYourTurn       = "not_your_turn"
	CodeSessionTerminated = "session_terminated"
	CodeRoomNotFound      = "room_not_found"
	CodeRoomFull          = "room_full"
	CodeNoActiveSession   = "no_active_session"
	CodeAlreadyInGame     = "already_in_game"
	CodeAlreadyWaiting    = "already_waiting"
	CodeBadRequest        = "bad_request"
)

// ProtocolError is an error frame payload and doubles as a Go error so
// components can return it directly to the dispatcher.
type ProtocolError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e *ProtocolError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "protocol error"
}

// Errf builds a ProtocolError with the given code and message.
func Errf(code, message string) *ProtocolError {
	return &ProtocolError{Code: code, Message: message}
}
