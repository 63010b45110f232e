package view

// tickMsg redraws the waveform from the live buffer.
type tickMsg struct{}

// stoppedMsg carries the result of finalizing the recording.
type stoppedMsg struct {
	Text string
	Err  error
}
