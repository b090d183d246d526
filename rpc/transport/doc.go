// Package transport defines the interfaces and abstractions for RPC communication
// with a qdev device server. It provides a common contract that all transport
// implementations must fulfill, enabling protocol-agnostic communication.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Addressing devices by their minor number
//   - Enabling multiple transport implementations (HTTP, TCP, Unix sockets)
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and hands them, together with the addressed minor, to a handler.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
package transport
