// Package client implements the RPC client of qdev. It provides an implementation of
// the device.ISession interface that forwards every operation to a remote device server.
//
// The package focuses on:
//   - Transparent RPC access to remote devices
//   - Integration with the transport and serialization layers
//   - Reconstructing device errors (device.RetCode) from responses
//
// Key Components:
//
//   - NewRPCDevice: Factory function that creates a client implementing the device.ISession
//     interface for the device with the given minor number. Since it is a regular session,
//     a device.File can be opened on top of it.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:5000"},
//	    TimeoutSecond:          5,
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	dev, _ := client.NewRPCDevice(0, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//
//	f, _ := device.OpenFile(ctx, dev, device.ModeWriteOnly)
//	f.Write([]byte("hello"))
//	f.Close()
//
// Cancellation:
//
//	A context that is done before a request is sent fails with device.ErrRestart. Requests
//	already on the wire are not interrupted, the server bounds them with its lock timeout.
//
// Performance Considerations:
//
//   - Every Read and Write moves at most one quantum, so the quantum size sets the
//     payload size of the messages.
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	The client is thread-safe and can be used concurrently from multiple goroutines.
package client
