// Package cmd implements the command-line interface for the census service.
// It provides a hierarchical command structure with operations for running
// the collector server and for reporting pings as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the census server
//   - report: Commands for sending usage pings to a collector
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See census -help for a list of all commands.
package cmd
