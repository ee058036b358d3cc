package audio

import (
	"encoding/binary"
	"fmt"
)

// EncodeWAV wraps raw PCM samples in a minimal WAV container so downstream
// encoders can detect the format. Only linear 16-bit mono input is
// supported; compressed telephony formats have no meaningful WAV framing
// here.
func EncodeWAV(pcm []byte, info EncodingInfo) ([]byte, error) {
	if info.Format != EncodingLinear16 {
		return nil, fmt.Errorf("unsupported encoding for wav container: %s", info.Format.Name())
	}

	const (
		channels       = 1
		bitsPerSample  = 16
		headerSize     = 44
		fmtChunkSize   = 16
		pcmAudioFormat = 1
	)

	byteRate := info.SampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, 0, headerSize+len(pcm))
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(headerSize-8+len(pcm)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, fmtChunkSize)
	buf = binary.LittleEndian.AppendUint16(buf, pcmAudioFormat)
	buf = binary.LittleEndian.AppendUint16(buf, channels)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(info.SampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(byteRate))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(blockAlign))
	buf = binary.LittleEndian.AppendUint16(buf, bitsPerSample)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(pcm)))
	buf = append(buf, pcm...)

	return buf, nil
}
