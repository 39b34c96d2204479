package relay

import (
	"strings"
)

// Envelope types on the wire.
const (
	typeRegister  = "register"
	typeTelemetry = "telemetry"
	typeCommand   = "command"
)

// Command is one decoded relay-to-client command envelope.
type Command struct {
	Name       string
	Parameters string
}

// EncodeRegister builds the handshake line sent after every connect.
func EncodeRegister(clientID string) []byte {
	b := make([]byte, 0, 40+len(clientID))
	b = append(b, `{"type":"register","client_id":"`...)
	b = append(b, clientID...)
	b = append(b, '"', '}', '\n')
	return b
}

// EncodeTelemetry builds a telemetry line. data is the caller-supplied
// JSON object text, inserted verbatim; presence is the caller's problem.
func EncodeTelemetry(clientID, data string) []byte {
	b := make([]byte, 0, 48+len(clientID)+len(data))
	b = append(b, `{"type":"telemetry","client_id":"`...)
	b = append(b, clientID...)
	b = append(b, `","data":`...)
	b = append(b, data...)
	b = append(b, '}', '\n')
	return b
}

// DecodeCommand inspects one frame (without the trailing newline).
// ok=false for anything that is not a dispatchable command envelope:
// other envelope types, missing type, missing command_name. Absent
// parameters decode as the empty string, never as an error.
func DecodeCommand(frame []byte) (Command, bool) {
	s := string(frame)
	typ, ok := scanValue(s, "type")
	if !ok || typ != typeCommand {
		return Command{}, false
	}
	name, ok := scanValue(s, "command_name")
	if !ok {
		return Command{}, false
	}
	params, _ := scanValue(s, "parameters")
	return Command{Name: name, Parameters: params}, true
}

// scanValue extracts the value of a top-level key: find `"key":`, skip
// spaces and tabs, then either read a quoted string up to the next quote
// or a bare token up to `,`, `}` or end of line with trailing whitespace
// trimmed. The relay envelope carries only flat scalar fields, so escaped
// quotes and nested values are deliberately out of scope; upgrading this
// to a real parser would change command semantics and needs a protocol
// version bump.
func scanValue(s, key string) (string, bool) {
	needle := `"` + key + `":`
	i := strings.Index(s, needle)
	if i < 0 {
		return "", false
	}
	i += len(needle)
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if i < len(s) && s[i] == '"' {
		i++
		j := strings.IndexByte(s[i:], '"')
		if j < 0 {
			return "", false
		}
		return s[i : i+j], true
	}
	j := i
	for j < len(s) && s[j] != ',' && s[j] != '}' && s[j] != '\n' {
		j++
	}
	return strings.TrimRight(s[i:j], " \t"), true
}
