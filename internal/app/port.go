package app

import (
	"fmt"
	"log/slog"
	"net"
)

// ListenWithFallback binds the preferred TCP port, falling back to an
// OS-assigned port when the preferred one is taken. Useful when several
// workers share a host.
func ListenWithFallback(preferred int) (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", preferred))
	if err == nil {
		return ln, nil
	}
	slog.Warn("preferred port unavailable, falling back to ephemeral port",
		slog.Int("preferred_port", preferred),
		slog.Any("error", err))
	ln, err = net.Listen("tcp", ":0")
	if err != nil {
		return nil, fmt.Errorf("op=app.ListenWithFallback: %w", err)
	}
	return ln, nil
}
