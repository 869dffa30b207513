// ABOUTME: Package server hosts the tasksync REST API and realtime feed
// ABOUTME: Wires store, broadcaster, relay, auth, and listeners into one process

// Package server is the tasksync backend process.
//
// Routes:
//
//	GET    /health                 liveness
//	GET    /health/ready           store reachability
//	GET    /rest/v1/tasks          list tasks ordered by id
//	POST   /rest/v1/tasks          create a task owned by the caller
//	GET    /rest/v1/tasks/{id}     fetch one task
//	PATCH  /rest/v1/tasks/{id}     update title or completion
//	DELETE /rest/v1/tasks/{id}     delete a task
//	GET    /realtime/v1/{channel}  websocket change feed
//	GET    /metrics                Prometheus metrics, when enabled
//
// All /rest and /realtime routes require a bearer JWT. Row policy
// rejections are answered with 403 and code "42501".
package server
