package retry

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/strandworks/strand"
)

// statusCoder is implemented by provider SDK errors carrying an HTTP
// status code.
type statusCoder interface {
	StatusCode() int
}

// IsTransient determines whether an error is worth retrying. Transport
// errors from the stream layer are explicitly retryable; otherwise it
// falls back to heuristic detection of rate limits (429), server errors
// (5xx), and network-level failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if strand.Retryable(err) {
		return true
	}
	// Protocol and tool errors are never fixed by retrying the request.
	if strand.IsProtocol(err) {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return isTransientStatusCode(sc.StatusCode())
	}

	return isTransientNetworkError(err)
}

func isTransientStatusCode(code int) bool {
	if code == 429 {
		return true
	}
	return code >= 500 && code < 600
}

func isTransientNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && isTransientNetworkError(urlErr.Err) {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary()
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ETIMEDOUT:
			return true
		}
	}

	// Message-pattern fallback for errors that lost their type through
	// string wrapping.
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset",
		"connection refused",
		"timeout",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"rate limit",
		"bad gateway",
		"gateway timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}
