// Package service implements the graph operations behind the HTTP API and
// the CLI: graph lifecycle, node and edge mutation, rendering and runs.
//
// Requests are validated with struct tags before they reach the graph model.
// Every error is an *errors.AppError; failed runs carry the run id and the
// partial state in the error details.
package service
