package capture

import "time"

const (
	// DefaultTimeout bounds one ffmpeg grab, including stream connect.
	DefaultTimeout = 15 * time.Second

	// DefaultFFmpegPath is resolved through PATH.
	DefaultFFmpegPath = "ffmpeg"

	// maxStderr caps how much ffmpeg diagnostics are kept for error messages.
	maxStderr = 2048
)
