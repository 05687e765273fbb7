package instance

import (
	"os"

	"github.com/angelmondragon/wacart-backend/pkg/env"
)

const EnvWorkerID = "WACART_WORKER_ID"

// ID identifies this process in logs. It prefers WACART_WORKER_ID, then the
// hostname.
func ID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker-0"
	}
	return env.Get(EnvWorkerID, host)
}
