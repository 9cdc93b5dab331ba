package testutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"testing"
	"time"
)

// DefraTestConfig describes the DefraDB container a test server should
// run against. Plain strings rather than defra types keep testutil
// importable from the defra package's own tests.
type DefraTestConfig struct {
	ContainerName string
	HostPort      string
	Labels        map[string]string
}

// ServerConfig carries everything a test needs to assemble a server,
// expressed without importing the server package.
type ServerConfig struct {
	Host          string
	Port          string
	DefraDataPath string
	ConfigFile    string
	DefraConfig   DefraTestConfig
	Logger        *slog.Logger
}

// NewServerConfig builds a config with free ports, a temp data dir,
// and a uniquely named Defra container wired for cleanup.
func NewServerConfig(t *testing.T) ServerConfig {
	t.Helper()

	// Registers container cleanup for this test.
	_ = DockerClient(t)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	tempDir := t.TempDir()

	httpPort, err := FindFreePort()
	if err != nil {
		t.Fatalf("find free port for HTTP: %v", err)
	}
	defraPort, err := FindFreePort()
	if err != nil {
		t.Fatalf("find free port for DefraDB: %v", err)
	}

	return ServerConfig{
		Host:          "127.0.0.1",
		Port:          httpPort,
		DefraDataPath: tempDir,
		ConfigFile:    tempDir + "/config.yaml",
		DefraConfig: DefraTestConfig{
			ContainerName: UniqueContainerName(t, "defra"),
			HostPort:      defraPort,
			Labels:        ContainerLabels(t),
		},
		Logger: logger,
	}
}

// URL returns the base URL the configured server will listen on.
func (c ServerConfig) URL() string {
	return fmt.Sprintf("http://%s:%s", c.Host, c.Port)
}

// WaitForServer polls /status until the server reports its Defra node
// healthy. Startup includes pulling and booting a container, so the
// timeout should be generous.
func WaitForServer(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url + "/status")
		if err == nil {
			var status struct {
				Defra struct {
					Health string `json:"health"`
				} `json:"defra"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&status); err == nil {
				if status.Defra.Health == "healthy" {
					resp.Body.Close()
					return nil
				}
			}
			resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %v", timeout)
}

// FindFreePort asks the kernel for an open TCP port on loopback.
func FindFreePort() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer listener.Close()
	return fmt.Sprintf("%d", listener.Addr().(*net.TCPAddr).Port), nil
}
