// Client for the IoTConnect relay endpoint, device application side.
// Responsible for:
// - connecting over a unix stream socket or TCP, chosen from one address string
// - register handshake after every connect
// - telemetry delivery while connected, no queueing while offline
// - dispatch of relay commands to the application callback
// - unlimited reconnect attempts until Stop()
//
// Wire protocol is newline delimited JSON, one envelope per line:
//
//	{"type":"register","client_id":"<id>"}
//	{"type":"telemetry","client_id":"<id>","data":<object>}
//	{"type":"command","command_name":"<name>","parameters":"<string>"}
//
// Network failures are never returned from background tasks; the caller
// observes connectivity through IsConnected() and the SendTelemetry()
// return value only.
package relay
