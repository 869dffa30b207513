// Package realtime fans task change events out to websocket subscribers.
//
// A PublishingStore wraps the durable store and emits one WireEvent per
// committed mutation. Events go through a Publisher: either the in-process
// EventBroadcaster, or a RedisRelay that shares the feed between server
// instances. Handler upgrades GET /realtime/v1/{channel} to a websocket and
// streams the channel's events, preceded by a "subscribed" system frame and
// interleaved with heartbeats.
//
// The feed has no replay. A subscriber that cannot keep up is evicted rather
// than silently losing events; its client reconnects and resyncs.
package realtime
