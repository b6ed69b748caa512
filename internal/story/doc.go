// Package story generates children's stories as scene-by-scene storyboards.
// A deterministic rule-based generator is always available; an Ollama-backed
// generator can replace it when a local model server is running.
package story
