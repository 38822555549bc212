// Package wav writes mono 16-bit PCM as a RIFF/WAVE file.
package wav

import (
	"bytes"
	"encoding/binary"
)

// EncodePCM16 wraps mono samples in a canonical 44-byte WAV header.
func EncodePCM16(samples []int16, sampleRate int) []byte {
	const channels = 1
	dataLen := uint32(len(samples) * 2)

	var buffer bytes.Buffer
	buffer.Grow(44 + int(dataLen))

	buffer.WriteString("RIFF")
	binary.Write(&buffer, binary.LittleEndian, dataLen+36)
	buffer.WriteString("WAVE")

	buffer.WriteString("fmt ")
	binary.Write(&buffer, binary.LittleEndian, uint32(16))
	binary.Write(&buffer, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buffer, binary.LittleEndian, uint16(channels))
	binary.Write(&buffer, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buffer, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buffer, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buffer, binary.LittleEndian, uint16(16))

	buffer.WriteString("data")
	binary.Write(&buffer, binary.LittleEndian, dataLen)
	binary.Write(&buffer, binary.LittleEndian, samples)

	return buffer.Bytes()
}
