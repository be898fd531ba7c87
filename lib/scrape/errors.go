package scrape

import (
	"context"
	"errors"
	"net"
	"os"
)

// IsTimeout reports whether err is a transient timeout. Timeouts are
// retried against the existing session; any other failure tears the
// session down first.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return os.IsTimeout(err)
}
