// Package process runs external tools such as ffmpeg. A canceled context
// sends SIGTERM to the whole process group and SIGKILL after a grace period,
// so a stuck conversion never outlives its request.
package process
