package utils

import (
	"context"
	"net/url"
	"os/signal"
	"syscall"
)

// SetupContext returns a context that is cancelled on SIGTERM or SIGINT.
func SetupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
}

// IsValidURL reports whether input is an absolute http(s) URL with a host.
func IsValidURL(input string) bool {
	u, err := url.ParseRequestURI(input)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
