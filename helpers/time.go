package helpers

import "time"

// IntSecondDefault converts config "integer seconds" with zero meaning def.
func IntSecondDefault(x int, def time.Duration) time.Duration {
	if x == 0 {
		return def
	}
	return time.Duration(x) * time.Second
}
