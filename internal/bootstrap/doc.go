// Package bootstrap prepares the process environment the way the original
// launcher scripts did: environment variable defaults with fallback
// semantics, detection of optional external tools, and preflight checks
// that gate the rest of the pipeline.
package bootstrap
