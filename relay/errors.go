package relay

import (
	"fmt"

	"github.com/juju/errors"
)

// Error taxonomy of the public API. Values are wrapped with juju/errors
// annotations along the way; compare with errors.Cause().
var (
	ErrSocket       = fmt.Errorf("socket error")
	ErrConnect      = fmt.Errorf("connection error")
	ErrSend         = fmt.Errorf("send error")
	ErrRecv         = fmt.Errorf("receive error")
	ErrJSON         = fmt.Errorf("JSON error")
	ErrDisconnected = fmt.Errorf("not connected")
	ErrInvalidParam = fmt.Errorf("invalid parameter")
	ErrClosing      = fmt.Errorf("closing")
)

// ErrorText maps any error produced by this package to the short
// human readable form of the wire protocol documentation.
func ErrorText(e error) string {
	switch errors.Cause(e) {
	case nil:
		return "Success"
	case ErrSocket:
		return "Socket error"
	case ErrConnect:
		return "Connection error"
	case ErrSend:
		return "Send error"
	case ErrRecv:
		return "Receive error"
	case ErrJSON:
		return "JSON error"
	case ErrDisconnected:
		return "Not connected"
	case ErrInvalidParam:
		return "Invalid parameter"
	case ErrClosing:
		return "Closing"
	default:
		return "Unknown error"
	}
}
