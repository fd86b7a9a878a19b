package testutil

import (
	"context"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// FreePort reserves a local TCP port and returns it to the caller.
// Params: none.
// Returns: free port number or error.
func FreePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// StartLocalNATSServer starts local nats-server with JetStream enabled for tests.
// Params: test handle for lifecycle and failure reporting.
// Returns: server URL and stop callback.
func StartLocalNATSServer(tb testing.TB) (string, func()) {
	tb.Helper()

	port := mustFreePort(tb)
	stop := startProcess(tb, "nats-server", "-js", "-p", strconv.Itoa(port), "-sd", tb.TempDir())
	url := "nats://127.0.0.1:" + strconv.Itoa(port)
	waitReady(tb, url, 8*time.Second, func() error {
		nc, err := nats.Connect(url)
		if err != nil {
			return err
		}
		nc.Close()
		return nil
	})
	return url, stop
}

// StartLocalRedisServer starts an ephemeral redis-server without persistence for tests.
// Params: test handle for lifecycle and failure reporting.
// Returns: redis URL and stop callback.
func StartLocalRedisServer(tb testing.TB) (string, func()) {
	tb.Helper()

	port := mustFreePort(tb)
	stop := startProcess(tb, "redis-server", "--port", strconv.Itoa(port), "--save", "", "--appendonly", "no")
	url := "redis://127.0.0.1:" + strconv.Itoa(port) + "/0"
	waitReady(tb, url, 8*time.Second, func() error {
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:" + strconv.Itoa(port)})
		defer client.Close()
		return client.Ping(context.Background()).Err()
	})
	return url, stop
}

func mustFreePort(tb testing.TB) int {
	tb.Helper()
	port, err := FreePort()
	if err != nil {
		tb.Fatalf("free port: %v", err)
	}
	return port
}

// startProcess launches a server binary, skipping the test when it is not installed.
// Params: test handle, binary name, and arguments.
// Returns: idempotent stop callback.
func startProcess(tb testing.TB, binary string, args ...string) func() {
	tb.Helper()

	cmd := exec.Command(binary, args...)
	if err := cmd.Start(); err != nil {
		tb.Skipf("%s is required for integration test: %v", binary, err)
	}

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			if cmd.Process == nil {
				return
			}
			_ = cmd.Process.Signal(syscall.SIGTERM)
			done := make(chan struct{})
			go func() {
				_, _ = cmd.Process.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				_ = cmd.Process.Kill()
				<-done
			}
		})
	}
}

// waitReady polls check until it succeeds or timeout passes.
// Params: test handle, endpoint for messages, timeout, and readiness check.
// Returns: endpoint is reachable or test fails.
func waitReady(tb testing.TB, endpoint string, timeout time.Duration, check func() error) {
	tb.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() == nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	tb.Fatalf("server did not become ready at %s", endpoint)
}
