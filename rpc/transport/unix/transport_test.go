package unix

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/qdev/rpc/common"
)

// startEchoServer starts a server that answers every request with "<minor>:<request>"
func startEchoServer(t *testing.T) string {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "qdev.sock")

	server := NewUnixDefaultServerTransport()
	server.RegisterHandler(func(minor uint64, req []byte) []byte {
		return []byte(fmt.Sprintf("%d:%s", minor, req))
	})

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(common.ServerConfig{
			Transport: common.ServerTransportConfig{Endpoint: socket, WorkersPerConn: 4},
		})
	}()
	t.Cleanup(func() {
		if err := server.Close(); err != nil {
			t.Errorf("Failed to close server: %v", err)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Listen returned %v after Close", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	return socket
}

func clientConfig(socket string) common.ClientConfig {
	return common.ClientConfig{
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{socket},
			TimeoutSecond:          5,
			ConnectionsPerEndpoint: 2,
		},
	}
}

// connect retries until the server socket accepts connections
func connect(t *testing.T, client interface{ Connect(common.ClientConfig) error }, config common.ClientConfig) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		err := client.Connect(config)
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Failed to connect: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSendReceive(t *testing.T) {
	socket := startEchoServer(t)
	client := NewUnixClientTransport()

	connect(t, client, clientConfig(socket))
	defer client.Close()

	resp, err := client.Send(3, []byte("ping"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(resp) != "3:ping" {
		t.Errorf("Expected response 3:ping, got %q", resp)
	}
}

func TestConcurrentRequestsAreCorrelated(t *testing.T) {
	socket := startEchoServer(t)
	client := NewUnixClientTransport()

	connect(t, client, clientConfig(socket))
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := fmt.Sprintf("req-%d", i)
			resp, err := client.Send(uint64(i%4), []byte(req))
			if err != nil {
				t.Errorf("Send %d failed: %v", i, err)
				return
			}
			if want := fmt.Sprintf("%d:%s", i%4, req); string(resp) != want {
				t.Errorf("Response mismatch: got %q, want %q", resp, want)
			}
		}(i)
	}
	wg.Wait()
}

func TestConnectWithoutServer(t *testing.T) {
	client := NewUnixClientTransport()
	err := client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{filepath.Join(t.TempDir(), "missing.sock")}},
	})
	if err == nil {
		t.Error("Expected an error for a missing socket")
	}

	if err := client.Connect(common.ClientConfig{}); err == nil {
		t.Error("Expected an error without endpoints")
	}
}
