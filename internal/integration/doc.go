// Package integration holds end-to-end tests that run crawls against a real
// bleve index and sqlite catalog.
package integration
