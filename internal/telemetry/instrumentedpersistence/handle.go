package instrumentedpersistence

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

var handleCounter atomic.Uint64

// handleID returns a unique identifier for an open keyspace.
//
// It includes a counter component for easy visual identification by humans, and
// a UUID component for global correlation in observability tools.
func handleID() string {
	return fmt.Sprintf(
		"#%d %s",
		handleCounter.Add(1),
		uuid.NewString(),
	)
}

// isShortASCII returns true if k is a non-empty ASCII string short enough that
// it may be included as a telemetry attribute.
func isShortASCII[T ~string | ~[]byte](k T) bool {
	if len(k) == 0 || len(k) > 128 {
		return false
	}

	for i := 0; i < len(k); i++ {
		if k[i] < ' ' || k[i] > '~' {
			return false
		}
	}

	return true
}
