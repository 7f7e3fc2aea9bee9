// Package redis connects to the Redis server that backs the last-status
// cache. It only builds and checks go-redis clients; key layout lives with
// the cache in the telemetry package.
package redis
