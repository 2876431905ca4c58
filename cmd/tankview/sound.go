package main

import (
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// sound plays short cues. A failed speaker init leaves it silent.
type sound struct {
	ok bool
}

func newSound() (*sound, error) {
	s := &sound{}
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return s, err
	}
	s.ok = true
	return s, nil
}

func (s *sound) catch() {
	s.tone(660, 60*time.Millisecond)
}

func (s *sound) miss() {
	s.tone(220, 40*time.Millisecond)
}

func (s *sound) tone(freq float64, d time.Duration) {
	if s == nil || !s.ok {
		return
	}
	sine, err := generators.SineTone(sampleRate, freq)
	if err != nil {
		return
	}
	speaker.Play(beep.Take(sampleRate.N(d), sine))
}

func (s *sound) close() {
	if s == nil || !s.ok {
		return
	}
	speaker.Clear()
}
