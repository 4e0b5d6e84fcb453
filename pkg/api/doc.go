// Package api is the HTTP client for the coordination server's REST endpoints:
// the version probe, robot authentication and registration, and program download.
package api
