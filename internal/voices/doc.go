// Package voices manages the local piper voice catalog: scanning the
// voices directory for .onnx models, watching it for changes, fuzzy
// lookup by name, and downloading new voices from the rhasspy
// piper-voices repository.
package voices
