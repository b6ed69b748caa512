// Package studio orchestrates the production pipeline: storyboard,
// scene art, narration, and video rendering. The CLI and the web
// server both drive it and watch the same progress event stream.
package studio
