package conversion

import (
	"sync"

	"videomass/ffmpeg"
)

// Measurement is filled by a measuring pass and read by the passes that
// depend on it when they build their arguments.
type Measurement struct {
	mu       sync.RWMutex
	volume   *ffmpeg.Volume
	loudness *ffmpeg.Loudness
}

// SetVolume stores a volumedetect result.
func (m *Measurement) SetVolume(v ffmpeg.Volume) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = &v
}

// Volume returns the volumedetect result, if measured.
func (m *Measurement) Volume() (ffmpeg.Volume, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.volume == nil {
		return ffmpeg.Volume{}, false
	}
	return *m.volume, true
}

// SetLoudness stores a loudnorm analysis.
func (m *Measurement) SetLoudness(l ffmpeg.Loudness) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loudness = &l
}

// Loudness returns the loudnorm analysis, if measured.
func (m *Measurement) Loudness() (ffmpeg.Loudness, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loudness == nil {
		return ffmpeg.Loudness{}, false
	}
	return *m.loudness, true
}
