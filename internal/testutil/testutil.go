// Package testutil provides test helpers for service and client tests.
package testutil

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raven-os/albinos/pkg/service"
)

// StartService boots a service on a private socket and database and tears
// it down with the test. It returns the socket path for clients.
func StartService(t *testing.T) (*service.Service, string) {
	t.Helper()
	return StartServiceWithOptions(t, service.Options{})
}

// StartServiceWithOptions is StartService with caller-supplied options;
// empty socket and database paths are filled with per-test ones.
func StartServiceWithOptions(t *testing.T, opts service.Options) (*service.Service, string) {
	t.Helper()

	// A short base dir keeps the socket path under the UNIX limit.
	dir, err := os.MkdirTemp("", "albinos")
	if err != nil {
		t.Fatalf("creating temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	if opts.SocketPath == "" {
		opts.SocketPath = filepath.Join(dir, "albinos.sock")
	}
	if opts.DatabasePath == "" {
		opts.DatabasePath = filepath.Join(dir, "albinos_test.db")
	}

	svc, err := service.New(opts)
	if err != nil {
		t.Fatalf("creating service: %v", err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("starting service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	WaitForSocket(t, opts.SocketPath)
	return svc, opts.SocketPath
}

// WaitForSocket blocks until the socket accepts a connection.
func WaitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("unix", path, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("service socket %s never came up", path)
}
