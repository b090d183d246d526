package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/qdev/lib/qstore"
)

// --------------------------------------------------------------------------
// Shared transport configuration
// --------------------------------------------------------------------------

// SocketConf holds the socket settings shared by the tcp and unix transports
type SocketConf struct {
	WriteBufferSize int // Kernel write buffer size in bytes (0 = system default)
	ReadBufferSize  int // Kernel read buffer size in bytes (0 = system default)
}

// TCPConf holds the settings only used by the tcp transport
type TCPConf struct {
	TCPNoDelay      bool // Disable Nagle's algorithm
	TCPKeepAliveSec int  // Keep-alive period in seconds (0 = disabled)
	TCPLingerSec    int  // Linger timeout in seconds (0 = system default)
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// DeviceConfig describes the device table the server creates on startup
type DeviceConfig struct {
	FirstMinor  uint64 // Minor of the first device
	Count       int    // Number of devices
	Quantum     int    // Default bytes per quantum
	QSet        int    // Default slots per segment
	MemoryLimit int64  // Memory limit per device in bytes (0 = unlimited)
	MaxSize     int64  // Maximum addressable size per device in bytes (0 = unlimited)
}

// Geometry returns the default geometry of the configured devices
func (c DeviceConfig) Geometry() qstore.Geometry {
	return qstore.Geometry{Quantum: c.Quantum, QSet: c.QSet}
}

// ServerTransportConfig holds the listener settings of the server
type ServerTransportConfig struct {
	Endpoint       string // Address (tcp, http) or socket path (unix)
	TimeoutSecond  int64  // Read and write deadline per frame (0 = none)
	BufferSize     int    // Size of the pooled frame buffers in bytes (0 = transport default)
	WorkersPerConn int    // Maximum concurrent requests per connection
	SocketConf
	TCPConf
}

// ServerConfig holds all configuration parameters of a device server.
type ServerConfig struct {
	Devices   DeviceConfig
	Transport ServerTransportConfig

	// Maximum time a request waits for the device lock (0 = wait forever)
	LockTimeout time.Duration

	// Address of the Prometheus metrics endpoint (empty = disabled)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.Transport.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Lock Timeout", lockTimeoutString(c.LockTimeout))
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Devices
	addSection("Devices")
	addField("Minors", fmt.Sprintf("%d..%d", c.Devices.FirstMinor, c.Devices.FirstMinor+uint64(max(c.Devices.Count, 1))-1))
	addField("Geometry", c.Devices.Geometry().String())
	if c.Devices.MemoryLimit > 0 {
		addField("Memory Limit", fmt.Sprintf("%d bytes", c.Devices.MemoryLimit))
	} else {
		addField("Memory Limit", "unlimited")
	}
	if c.Devices.MaxSize > 0 {
		addField("Max Size", fmt.Sprintf("%d bytes", c.Devices.MaxSize))
	} else {
		addField("Max Size", "unlimited")
	}

	return sb.String()
}

func lockTimeoutString(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the connection settings of a client
type ClientTransportConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

type ClientConfig struct {
	Transport ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.Transport.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
