// Package pool provides a bounded worker pool for blocking calls.
// This package is internal and should not be imported by external projects.
package pool
