// Package accel defines the contract between the kernel execution layer and an
// accelerator device runtime: device properties, ordered asynchronous command queues,
// memory allocation by location, asynchronous data transfer, and the framework-level
// Stream object that ties a queue together with the deferred-release list of host
// staging memory and the cache of compute-library handles.
//
// The package is implementation-agnostic: hardware-backed runtimes and the software
// runtime in accel/cpurt implement the same interfaces.
package accel
