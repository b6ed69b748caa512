// Package server exposes the studio as a local web app: a generation
// form, job pages with live progress over SSE, served outputs, a
// render history backed by sqlite, and Prometheus metrics.
package server
