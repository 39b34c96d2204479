package relay

import (
	"expvar"
	"fmt"

	"github.com/temoto/atomic_clock"
)

// SessionStat counts traffic over the client lifetime, across reconnects.
// Values are updated atomically but not consistently with each other.
type SessionStat struct {
	Connects    expvar.Int
	RecvFrames  expvar.Int
	RecvCommand expvar.Int
	SendTele    expvar.Int
	SendBytes   expvar.Int
	LastRecv    atomic_clock.Clock
}

func (ss *SessionStat) String() string {
	return fmt.Sprintf(`{"connects":%d,"recv.frames":%d,"recv.commands":%d,"send.telemetry":%d,"send.bytes":%d}`,
		ss.Connects.Value(), ss.RecvFrames.Value(), ss.RecvCommand.Value(),
		ss.SendTele.Value(), ss.SendBytes.Value())
}
