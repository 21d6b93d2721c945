package instance

import "os"

// GetID returns the process instance identifier used to tag logs. DYNO wins over
// HOSTNAME; local runs fall back to "local".
func GetID() string {
	for _, key := range []string{"DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
