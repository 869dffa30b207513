// Package client assembles a tasksync client from its configuration.
//
// # Overview
//
// A Client owns one of each client-side component:
//
//   - identity.Manager holding the signed-in principal and bearer token
//   - remote.Client talking to the REST API
//   - feed.Subscriber holding the websocket change feed open
//   - engine.Engine reconciling local state and running commands
//
// The bearer token is read from the session manager on every request and
// every dial, so Login and Logout take effect without rebuilding anything.
//
// # Lifecycle
//
//	c, err := client.New(ctx, client.Options{Config: cfg})
//	defer c.Close()
//	if err := c.StartAndSync(ctx); err != nil { ... }
//	tasks := c.Engine.Records()
package client
