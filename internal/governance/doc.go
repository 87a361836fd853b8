// Package governance holds the admission controls of the calculation
// service: a per-client token-bucket rate limiter and the computation
// deadline applied to every calculation.
//
// Both primitives can be reconfigured at runtime so that configuration
// reloads take effect without restarting the server.
package governance
