package tonal

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// ReferenceA4 is the tuning reference in Hz
	ReferenceA4 = 440.0
	midiA4      = 69
)

var pitchClassNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var letterOffsets = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// NoteToMIDI parses scientific pitch notation ("A4", "C#3", "Eb5", "G♭2")
// into a MIDI note number. A missing octave means octave 0.
func NoteToMIDI(name string) (int, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return 0, fmt.Errorf("empty note name")
	}

	offset, ok := letterOffsets[strings.ToUpper(s[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("invalid note name %q", name)
	}
	s = s[1:]

	accidental := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		switch r {
		case '#', '♯':
			accidental++
		case 'b', '♭':
			accidental--
		default:
			size = 0
		}
		if size == 0 {
			break
		}
		s = s[size:]
	}

	octave := 0
	if s != "" {
		o, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid octave in note name %q", name)
		}
		octave = o
	}

	return 12*(octave+1) + offset + accidental, nil
}

// MIDIToHz converts a (possibly fractional) MIDI note number to Hz
func MIDIToHz(midi float64) float64 {
	return ReferenceA4 * math.Pow(2, (midi-midiA4)/12)
}

// HzToMIDI converts a frequency to a fractional MIDI note number
func HzToMIDI(freq float64) float64 {
	return midiA4 + 12*math.Log2(freq/ReferenceA4)
}

// NoteToHz converts a note name to its equal-tempered frequency
func NoteToHz(name string) (float64, error) {
	midi, err := NoteToMIDI(name)
	if err != nil {
		return 0, err
	}
	return MIDIToHz(float64(midi)), nil
}

// HzToNote returns the nearest note name using sharps ("A4", "C#5").
// Non-positive and NaN frequencies give "".
func HzToNote(freq float64) string {
	if math.IsNaN(freq) || math.IsInf(freq, 0) || freq <= 0 {
		return ""
	}

	midi := int(math.Round(HzToMIDI(freq)))
	pc := ((midi % 12) + 12) % 12
	octave := (midi-pc)/12 - 1
	return pitchClassNames[pc] + strconv.Itoa(octave)
}

// NotesFromPitch maps every voiced (finite, positive) frame of a pitch
// contour to its note name, skipping unvoiced frames
func NotesFromPitch(f0 []float64) []string {
	notes := make([]string, 0, len(f0))
	for _, f := range f0 {
		if note := HzToNote(f); note != "" {
			notes = append(notes, note)
		}
	}
	return notes
}
