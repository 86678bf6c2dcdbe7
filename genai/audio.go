package genai

import (
	"bytes"
	"encoding/binary"
)

// Speech output format.
const (
	SpeechSampleRate = 24000
	SpeechChannels   = 1
)

// Speech is decoded text-to-speech audio.
type Speech struct {
	Model      string
	SampleRate int
	Channels   int

	// PCM is the raw 16-bit little-endian payload.
	PCM []byte

	// Samples holds PCM scaled to [-1, 1), interleaved by channel.
	Samples []float32
}

// DecodePCM16 converts little-endian signed 16-bit PCM into float samples.
// A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		out[i] = float32(v) / 32768.0
	}
	return out
}

// Duration returns the playback length in seconds.
func (s *Speech) Duration() float64 {
	if s.SampleRate == 0 || s.Channels == 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate*s.Channels)
}

// WAV wraps the PCM payload in a RIFF/WAVE container.
func (s *Speech) WAV() []byte {
	const bitsPerSample = 16
	pcm := s.PCM[:len(s.PCM)&^1]
	blockAlign := s.Channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(s.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(s.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(s.SampleRate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
