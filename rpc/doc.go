// Package rpc provides the remote procedure call framework of qdev. It is the
// communication layer between device clients and a device server.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: RPC client implementing device.ISession, so remote devices can be used
//     like local sessions.
//
//   - server: RPC server that owns the device table and dispatches requests to the
//     addressed device.
package rpc
