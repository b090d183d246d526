// Package cmd implements the command-line interface of qdev. It provides a
// hierarchical command structure for running the device server and for using
// its devices as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the qdev server (device count, geometry, memory limit, transport)
//   - dev: Device operations (write, read, cat, reset, configure, info) and the perf tool
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set through QDEV_<FLAG> environment variables, .env and .env.local
// files are loaded on startup.
//
// See qdev -help for a list of all commands.
package cmd
