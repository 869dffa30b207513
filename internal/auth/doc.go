// Package auth verifies the bearer tokens presented to the tasksync server.
//
// Tokens are HS256 JWTs signed with the configured jwt_secret. The "sub"
// claim is the principal id used for row policy checks; "email" and
// "user_metadata" (full_name, avatar_url, picture) carry the display
// fields a client copies onto the tasks it creates.
//
// HTTPAuthMiddleware accepts the token from the Authorization header or,
// for websocket upgrades from browsers that cannot set headers, from the
// access_token query parameter. The authenticated identity travels through
// the request context via WithAuth / FromContext.
package auth
