package stt

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV wraps 16-bit mono PCM in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	dataSize := uint32(len(pcm) &^ 1)
	buf := bytes.NewBuffer(make([]byte, 0, 44+int(dataSize)))

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, struct {
		ChunkSize     uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}{16, 1, 1, uint32(sampleRate), uint32(sampleRate * bytesPerSample), bytesPerSample, 16})

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)
	buf.Write(pcm[:dataSize])

	return buf.Bytes()
}
