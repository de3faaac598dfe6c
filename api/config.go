package api

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// Config holds all configuration parameters for the census HTTP server.
type Config struct {
	// Endpoint is the address the server listens on (e.g. 0.0.0.0:8080).
	Endpoint string

	// ServeKV exposes the KV storage protocol under /kv, letting this node
	// act as the storage backend for other census nodes.
	ServeKV bool

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Census Server")
	addField("Endpoint", c.Endpoint)
	addField("Serve KV protocol", fmt.Sprintf("%t", c.ServeKV))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
