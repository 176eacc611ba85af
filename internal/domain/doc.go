// Package domain defines the core types for lab provisioning.
//
// # Core Types
//
// Device is one managed router, keyed by its management address. Its
// hostname and loopback address are learned by discovery; credentials are
// shared per environment.
//
// Configuration is one rendered protocol document bound to a device. It is
// produced by the generator on every pass and consumed immediately by the
// deployer; it is never stored.
//
// # Addressing
//
// ISISNet derives the IS-IS network entity title of a router from its
// loopback IPv4 address. The derivation is pure and rejects malformed input
// instead of producing a truncated address.
//
// # Failures
//
// DeviceError records a failure isolated to one device at one pipeline
// stage. Stage reports collect them so a single unreachable router never
// aborts the batch.
package domain
