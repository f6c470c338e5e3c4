// Package client is the Go client for the confsync gRPC API, used by the
// CLI commands.
package client
