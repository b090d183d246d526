// Package common provides core data structures and utilities shared across
// the RPC front end of the device server. It defines the message protocol,
// the configuration structures and the logging setup used by other packages.
//
// The package focuses on:
//   - Message protocol definition for the device entry points
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication, with a flexible
//     structure that adapts to the different device operations. Includes factory
//     methods for every request and response. Errors travel as a device.RetCode plus
//     message and are rebuilt into a *device.Error by AsError, so errors.Is keeps
//     working across the wire.
//
//   - MessageType: Enumeration of all supported operations (open, read, write,
//     release, reset, configure, info) plus custom and control messages.
//
//   - ServerConfig: Configuration of a device server: the device table, the
//     transport settings, the lock timeout per request and the metrics endpoint.
//
//   - ClientConfig: Configuration for client components, controlling endpoints,
//     timeouts and retry behavior.
//
//   - Logger: Custom logging implementation that plugs into dragonboat's
//     logger.ILogger so all packages get consistent "LEVEL | name | message" lines.
package common
