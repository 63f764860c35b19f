// Package server provides the HTTP front door for oktyv: a Gin-backed server
// with h2c support, the standard middleware stack, and handlers for the
// execution, tool listing, and health endpoints.
package server
