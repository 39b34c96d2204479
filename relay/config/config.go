// Package relay_config is the file-configuration shape of the relay client.
// Applications embed Config in their own HCL config struct and map it to
// relay.ClientOptions with relay.OptionsFromConfig.
package relay_config

type Config struct { //nolint:maligned
	Address  string `hcl:"address"`
	ClientID string `hcl:"client_id"`
	LogDebug bool   `hcl:"log_debug"`

	NetworkTimeoutSec int `hcl:"network_timeout_sec"`
	ReconnectSec      int `hcl:"reconnect_sec"`
	ReconnectMaxSec   int `hcl:"reconnect_max_sec"`
	ReadLimit         int `hcl:"read_limit"`
}
