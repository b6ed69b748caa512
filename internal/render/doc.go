// Package render assembles scene stills and narration into platform-sized
// videos. The default engine drives ffmpeg directly; the alternate engine
// generates a moviepy script and runs it with the provisioned Python
// environment. Both apply the same gentle Ken Burns zoom and encode
// libx264/aac.
package render
