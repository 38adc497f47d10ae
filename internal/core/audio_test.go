// ABOUTME: Tests for PCM and WAV decoding and band feature extraction
// ABOUTME: Synthesizes pure tones on analysis bands so the dominant band is known
package core

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/attune/internal/models"
)

const testRate = 16000

// tone renders a 16-bit mono sine wave at freq
func tone(freq, amplitude, phase float64, n int) []byte {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		x := amplitude * math.Sin(2*math.Pi*freq*float64(i)/testRate+phase)
		_ = binary.Write(&buf, binary.LittleEndian, int16(x*32767))
	}
	return buf.Bytes()
}

// bandTone renders a tone centered on analysis band b
func bandTone(t *testing.T, b int, phase float64) []byte {
	t.Helper()
	freqs, err := bandFrequencies(testRate)
	require.NoError(t, err)
	return tone(freqs[b], 0.5, phase, 8000)
}

// wavFile wraps PCM frames in a RIFF/WAVE container
func wavFile(pcm []byte, rate, channels int) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate*channels*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func TestBandFrequencies(t *testing.T) {
	freqs, err := bandFrequencies(testRate)
	require.NoError(t, err)
	require.Len(t, freqs, FeatureBands)
	assert.InDelta(t, 100, freqs[0], 1e-9)
	assert.InDelta(t, 4000, freqs[FeatureBands-1], 1e-6)
	for i := 1; i < len(freqs); i++ {
		assert.Greater(t, freqs[i], freqs[i-1])
	}

	// narrowband audio caps the top band below Nyquist
	freqs, err = bandFrequencies(8000)
	require.NoError(t, err)
	assert.InDelta(t, 3600, freqs[FeatureBands-1], 1e-6)

	_, err = bandFrequencies(200)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestExtractFeaturesDominantBand(t *testing.T) {
	for _, b := range []int{2, 7, 12} {
		feats, err := ExtractFeatures(AudioSample{PCM: bandTone(t, b, 0), SampleRate: testRate})
		require.NoError(t, err)
		require.Len(t, feats, FeatureBands)
		assert.Equal(t, b, argmax(feats), "band %d", b)

		var sum float64
		for _, f := range feats {
			sum += f
		}
		assert.InDelta(t, 0, sum, 1e-9)
	}
}

func TestExtractFeaturesDeterministic(t *testing.T) {
	pcm := bandTone(t, 5, 0.3)
	a, err := ExtractFeatures(AudioSample{PCM: pcm, SampleRate: testRate})
	require.NoError(t, err)
	b, err := ExtractFeatures(AudioSample{PCM: pcm, SampleRate: testRate})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtractFeaturesSeparatesTones(t *testing.T) {
	low, err := ExtractFeatures(AudioSample{PCM: bandTone(t, 3, 0), SampleRate: testRate})
	require.NoError(t, err)
	lowShifted, err := ExtractFeatures(AudioSample{PCM: bandTone(t, 3, 1.1), SampleRate: testRate})
	require.NoError(t, err)
	high, err := ExtractFeatures(AudioSample{PCM: bandTone(t, 11, 0), SampleRate: testRate})
	require.NoError(t, err)

	assert.Greater(t, CosineSimilarity(low, lowShifted), CosineSimilarity(low, high))
}

func TestExtractFeaturesWAVMatchesPCM(t *testing.T) {
	pcm := bandTone(t, 6, 0)
	fromPCM, err := ExtractFeatures(AudioSample{PCM: pcm, SampleRate: testRate})
	require.NoError(t, err)
	fromWAV, err := ExtractFeatures(AudioSample{WAV: wavFile(pcm, testRate, 1)})
	require.NoError(t, err)
	assert.Equal(t, fromPCM, fromWAV)
}

func TestDecodePCM16Stereo(t *testing.T) {
	var buf bytes.Buffer
	for _, v := range []int16{16384, 0, -16384, -16384} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	got := decodePCM16(buf.Bytes(), 2)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.25, got[0], 1e-9)
	assert.InDelta(t, -0.5, got[1], 1e-9)
}

func TestExtractFeaturesRejectsBadInput(t *testing.T) {
	cases := map[string]AudioSample{
		"empty":            {},
		"pcm without rate": {PCM: tone(440, 0.5, 0, 1000)},
		"too short":        {PCM: tone(440, 0.5, 0, 100), SampleRate: testRate},
		"not riff":         {WAV: []byte("RIFX0000WAVEfmt ")},
		"8-bit wav": func() AudioSample {
			w := wavFile(tone(440, 0.5, 0, 1000), testRate, 1)
			binary.LittleEndian.PutUint16(w[34:], 8)
			return AudioSample{WAV: w}
		}(),
		"no data chunk": {WAV: wavFile(nil, testRate, 1)[:36]},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractFeatures(s)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestExtractFeaturesPassthrough(t *testing.T) {
	in := []float64{1, 2, 3}
	out, err := ExtractFeatures(AudioSample{Features: in})
	require.NoError(t, err)
	assert.Equal(t, in, out)
	out[0] = 9
	assert.Equal(t, 1.0, in[0])
}
