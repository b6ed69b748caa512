//go:build !unix

package render

import "os/exec"

// setProcessGroup is a no-op here; CommandContext kills the direct
// child, which is the best this platform offers without job objects.
func setProcessGroup(*exec.Cmd) {}
