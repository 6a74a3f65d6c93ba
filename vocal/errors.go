package vocal

import "fmt"

// DecodeError means a waveform could not be interpreted as audio, even after
// the ffmpeg conversion retry. It is fatal to that one extraction.
type DecodeError struct {
	File string // empty for in-memory waveforms
	Err  error
}

func (e *DecodeError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("decode waveform: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.File, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
