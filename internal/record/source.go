package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
)

// CannedSource is the default capture source used while the native
// microphone pipeline lives host-side: every cycle yields the same silent
// WAV payload. It still enforces Begin/End pairing so session bugs surface
// in development.
type CannedSource struct {
	mu     sync.Mutex
	active bool
	data   []byte
}

// NewCannedSource returns a source producing a short silent mono WAV clip.
func NewCannedSource() *CannedSource {
	return &CannedSource{data: silentWAV(16000, 1)}
}

func (c *CannedSource) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return errors.New("capture already active")
	}
	c.active = true
	return nil
}

func (c *CannedSource) End() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil, errors.New("capture not active")
	}
	c.active = false
	out := make([]byte, len(c.data))
	copy(out, c.data)
	return out, nil
}

// silentWAV builds a valid 16-bit PCM WAV file holding one second of
// silence at the given sample rate and channel count.
func silentWAV(sampleRate, channels int) []byte {
	samples := sampleRate * channels
	dataLen := samples * 2 // 16-bit

	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+dataLen))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16)) // PCM chunk size
	binary.Write(&b, binary.LittleEndian, uint16(1))  // PCM format
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate*channels*2)) // byte rate
	binary.Write(&b, binary.LittleEndian, uint16(channels*2))            // block align
	binary.Write(&b, binary.LittleEndian, uint16(16))                    // bits per sample
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(dataLen))
	b.Write(make([]byte, dataLen))
	return b.Bytes()
}
