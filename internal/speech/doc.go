// Package speech turns narration text into audio through local
// text-to-speech engines. It defines the engine contract, normalizes
// markdown into speakable text, and adds caching and fallback on top of the
// engines in the engines subpackage.
package speech
