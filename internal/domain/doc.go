// Package domain holds the core types of a bill-splitting session and the
// repository contract they are stored under. It has no dependencies on
// transports or backing stores; those live in internal/server, internal/redis
// and internal/memory.
package domain
