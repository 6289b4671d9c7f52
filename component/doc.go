// Package component defines the lifecycle interfaces shared by the graph
// service parts.
//
// Components are registered with a Registry, started in registration order,
// stopped in reverse, and polled for health by the /health endpoint.
//
// # Interfaces
//
//   - Component: Start, Stop and Health
//   - Describable: startup summary descriptions
//   - RouteProvider: HTTP routes for the startup summary
package component
