// Package redis provides the networked implementations of the session
// repository and the cross-instance snapshot relay, backed by a Redis
// instance. Each session is a single JSON document under one key, so whole-
// document reads and writes are atomic without scripting.
package redis
