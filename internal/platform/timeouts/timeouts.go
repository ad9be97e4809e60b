// Package timeouts defines shared timeout constants used across the process.
// Centralizing these values keeps the HTTP, gRPC, and storage boundaries aligned.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second

// HealthProbe caps a single gRPC health check round trip.
const HealthProbe = time.Second

// RedisOp caps a single revocation lookup or write against Redis.
const RedisOp = 500 * time.Millisecond

// TelemetryShutdown caps flushing pending spans at exit.
const TelemetryShutdown = 5 * time.Second

// HealthWait caps how long a health check command waits for SERVING.
const HealthWait = 5 * time.Second
