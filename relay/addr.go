package relay

import (
	"net"
	"strings"
)

const tcpPrefix = "tcp://"

// Target is the resolved transport endpoint. Resolution is pure syntax,
// no I/O happens here.
type Target struct {
	Network string // "unix" or "tcp"
	Addr    string // socket path, or host:port for net.Dial
}

// ResolveAddr interprets the configured address string.
// "tcp://<host>:<port>" selects TCP; the last colon separates host from
// port so hosts containing colons are tolerated. Anything else, including
// a tcp:// string without a numeric port, is treated as the filesystem
// path of a unix stream socket. The lenient fallback matches deployed
// relay endpoints; NewClient logs a warning when it triggers.
func ResolveAddr(address string) Target {
	if hostport, ok := splitTCP(address); ok {
		return Target{Network: "tcp", Addr: hostport}
	}
	return Target{Network: "unix", Addr: address}
}

func splitTCP(address string) (string, bool) {
	if !strings.HasPrefix(address, tcpPrefix) {
		return "", false
	}
	rest := address[len(tcpPrefix):]
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 {
		// no port separator, or empty host
		return "", false
	}
	host, port := rest[:i], rest[i+1:]
	if !isPort(port) {
		return "", false
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return net.JoinHostPort(host, port), true
}

func isPort(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
