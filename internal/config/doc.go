// Package config loads tasksync configuration.
//
// # Server
//
// The server reads YAML (Load). Values may reference environment variables
// with ${VAR_NAME}; durations are written as Go duration strings.
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	database:
//	  driver: "sqlite"            # sqlite | sqlite3 | postgres
//	  path: "./tasksync.db"
//	  dsn: "${DATABASE_URL}"      # postgres only
//	auth:
//	  jwt_secret: "${TASKSYNC_JWT_SECRET}"
//	realtime:
//	  heartbeat_interval: "25s"
//	  subscriber_buffer: 64
//	  redis_url: ""               # redis://host:6379/0 to share the feed between instances
//	logging:
//	  level: "info"
//	  format: "text"
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Client
//
// The CLI reads TOML (LoadClient), falling back to DefaultClient when no
// file exists.
//
//	[server]
//	url = "http://localhost:8080"
//
//	[feed]
//	channel = "public:tasks"
//	reconnect_min = "500ms"
//	reconnect_max = "30s"
//	read_timeout = "60s"
//
// # Locations
//
// ServerPath and ClientPath resolve, in order: the TASKSYNC_CONFIG /
// TASKSYNC_CLIENT_CONFIG environment variable, $XDG_CONFIG_HOME/tasksync/,
// then ~/.config/tasksync/.
package config
