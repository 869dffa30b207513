// Package metrics holds the Prometheus collectors shared by the tasksync
// client and server.
package metrics
