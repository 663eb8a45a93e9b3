// Package memory provides an in-memory store.Store for tests and local
// development. Records are copied on the way in and out so callers never
// share state with the store.
package memory
