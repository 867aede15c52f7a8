// Package memory provides key/value and object stores that keep their data in
// memory.
//
// They are used by tests, and by gateways that run as a single process
// without external storage.
package memory
