package ingest

import (
	"fmt"
	"os"
	"time"
)

// NewConsumerID creates a consumer name unique to this process for the
// ingest consumer group.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "linkpulse"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}
