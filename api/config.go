// Package api provides an HTTP API server for ingesting agent traces and
// serving their reconstructed graphs and risk annotations.
package api

import (
	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/worker"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Engine runs analyses. Defaults to analysis.NewEngine().
	Engine *analysis.Engine

	// Enqueuer receives an analysis job for every stored or updated trace.
	// Optional: when nil, stored traces are only analyzed on request.
	Enqueuer Enqueuer

	// DisableMCP leaves the /mcp route unmounted.
	DisableMCP bool
}

// Enqueuer accepts background analysis jobs. It is satisfied by *worker.Pool.
type Enqueuer interface {
	Enqueue(job worker.Job) bool
}
