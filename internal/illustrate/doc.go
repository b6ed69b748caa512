// Package illustrate produces scene art for storyboards. A Stable
// Diffusion WebUI client generates real illustrations when a local
// instance is reachable; a pure-Go card renderer is always available as
// the fallback, so a storyboard never goes to video without pictures.
package illustrate
