// ABOUTME: Deterministic acoustic feature extraction for voiceprints
// ABOUTME: Decodes 16-bit PCM or WAV and computes log band energies with the Goertzel filter
package core

import (
	"encoding/binary"
	"math"

	"github.com/harper/attune/internal/models"
)

// Feature extraction parameters
const (
	FeatureBands     = 16
	minBandHz        = 100.0
	maxBandHz        = 4000.0
	minAudioSamples  = 256
	maxAudioSeconds  = 30
	pcmFormatTag     = 1
	extensibleFormat = 0xFFFE
)

// AudioSample is one utterance. Exactly one of WAV, PCM (with SampleRate), or
// a precomputed Features vector is expected.
type AudioSample struct {
	WAV        []byte    `json:"wav,omitempty"`
	PCM        []byte    `json:"pcm,omitempty"`
	SampleRate int       `json:"sample_rate,omitempty"`
	Features   []float64 `json:"features,omitempty"`
}

// ExtractFeatures returns the feature vector for a sample. Identical input
// always yields an identical vector.
func ExtractFeatures(s AudioSample) ([]float64, error) {
	if len(s.Features) > 0 {
		out := make([]float64, len(s.Features))
		copy(out, s.Features)
		return out, nil
	}

	var signal []float64
	rate := s.SampleRate
	switch {
	case len(s.WAV) > 0:
		var err error
		signal, rate, err = decodeWAV(s.WAV)
		if err != nil {
			return nil, err
		}
	case len(s.PCM) > 0:
		if rate <= 0 {
			return nil, models.Invalid("sample_rate", "is required for raw PCM")
		}
		signal = decodePCM16(s.PCM, 1)
	default:
		return nil, models.Invalid("audio", "sample has no audio or features")
	}

	if len(signal) < minAudioSamples {
		return nil, models.Invalid("audio", "sample is too short")
	}
	if limit := rate * maxAudioSeconds; len(signal) > limit {
		signal = signal[:limit]
	}
	return bandFeatures(signal, rate)
}

// decodePCM16 reads little-endian 16-bit frames, mixing channels to mono
func decodePCM16(data []byte, channels int) []float64 {
	if channels < 1 {
		channels = 1
	}
	frameSize := 2 * channels
	frames := len(data) / frameSize
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			off := i*frameSize + 2*c
			sum += float64(int16(binary.LittleEndian.Uint16(data[off:]))) / 32768.0
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// decodeWAV parses a RIFF/WAVE container holding 16-bit PCM
func decodeWAV(data []byte) ([]float64, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, models.Invalid("wav", "is not a RIFF/WAVE file")
	}

	var (
		channels, bits int
		rate           int
		haveFmt        bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if size < 0 || end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, 0, models.Invalid("wav", "fmt chunk is truncated")
			}
			format := binary.LittleEndian.Uint16(data[body:])
			if format != pcmFormatTag && format != extensibleFormat {
				return nil, 0, models.Invalid("wav", "only PCM encoding is supported")
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			rate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, models.Invalid("wav", "data chunk precedes fmt chunk")
			}
			if bits != 16 {
				return nil, 0, models.Invalid("wav", "only 16-bit samples are supported")
			}
			if rate <= 0 || channels <= 0 {
				return nil, 0, models.Invalid("wav", "invalid sample rate or channel count")
			}
			return decodePCM16(data[body:end], channels), rate, nil
		}

		// chunks are word aligned
		pos = end + size%2
	}
	return nil, 0, models.Invalid("wav", "no data chunk")
}

// bandFrequencies returns the log-spaced analysis frequencies for a sample rate
func bandFrequencies(rate int) ([]float64, error) {
	hi := math.Min(maxBandHz, 0.45*float64(rate))
	if hi <= minBandHz {
		return nil, models.Invalid("sample_rate", "is too low for feature extraction")
	}
	freqs := make([]float64, FeatureBands)
	ratio := hi / minBandHz
	for b := range freqs {
		freqs[b] = minBandHz * math.Pow(ratio, float64(b)/float64(FeatureBands-1))
	}
	return freqs, nil
}

// bandFeatures computes mean-centered log energies at log-spaced frequencies
func bandFeatures(signal []float64, rate int) ([]float64, error) {
	freqs, err := bandFrequencies(rate)
	if err != nil {
		return nil, err
	}

	// remove DC and apply a Hann window
	var mean float64
	for _, x := range signal {
		mean += x
	}
	mean /= float64(len(signal))
	n := len(signal)
	windowed := make([]float64, n)
	for i, x := range signal {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		windowed[i] = (x - mean) * w
	}

	feats := make([]float64, FeatureBands)
	var avg float64
	for b, freq := range freqs {
		power := goertzel(windowed, freq, float64(rate)) / float64(n*n)
		feats[b] = math.Log(power + 1e-12)
		avg += feats[b]
	}
	avg /= FeatureBands
	for b := range feats {
		feats[b] -= avg
	}
	return feats, nil
}

// goertzel returns the signal power at freq
func goertzel(signal []float64, freq, rate float64) float64 {
	coeff := 2 * math.Cos(2*math.Pi*freq/rate)
	var s1, s2 float64
	for _, x := range signal {
		s0 := x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	return s1*s1 + s2*s2 - coeff*s1*s2
}
