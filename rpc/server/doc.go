// Package server implements the RPC server of qdev. It owns a table of devices
// (lib/device/registry), decodes incoming requests and dispatches them to the device
// addressed by the minor number of the frame.
//
// The package focuses on:
//   - Server-side RPC request handling for all device operations
//   - Adapter pattern to decouple the device logic from RPC mechanisms
//   - Bounding every request with a context (lock timeout and shutdown)
//   - Exposing the device metrics for Prometheus
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a device.ISession.
//
//   - NewDeviceServerAdapter: Factory function creating an adapter that translates
//     RPC requests to device.ISession method calls. Reads are capped at 16 MB per request.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Devices: common.DeviceConfig{Count: 4, Quantum: 4000, QSet: 1000},
//	  Transport: common.ServerTransportConfig{Endpoint: "0.0.0.0:8080", TimeoutSecond: 5},
//	  LockTimeout: 2 * time.Second,
//	  MetricsEndpoint: ":9100",
//	  LogLevel: "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Errors:
//
//	Failures are returned to the client inside the response message (device.RetCode plus
//	message). A request for an unknown minor is answered with RetCNoDevice, a request that
//	could not get the device lock within LockTimeout (or was interrupted by Shutdown) with
//	RetCRestart.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Requests for the same device are serialized by the
//	device lock. Serve should be called only once.
package server
