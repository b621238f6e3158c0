package audio

import (
	"encoding/binary"
	"errors"
)

// wavHeaderSize is the size of the canonical 44-byte RIFF/WAVE header
// produced by EncodeWAV.
const wavHeaderSize = 44

// EncodeWAV wraps raw little-endian int16 PCM in a canonical 44-byte
// RIFF/WAVE header. sampleRate and channels describe the PCM layout.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2
	dataLen := len(pcm)

	out := make([]byte, wavHeaderSize+dataLen)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16) // bits per sample

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataLen))
	copy(out[wavHeaderSize:], pcm)
	return out
}

// WAVInfo holds the format metadata extracted from a RIFF/WAVE container.
type WAVInfo struct {
	DataOffset int // byte offset of the first PCM sample
	DataLen    int // length of the PCM data in bytes
	SampleRate int // samples per second (e.g., 16000, 24000, 48000)
	Channels   int // 1 = mono, 2 = stereo
}

// DecodeWAV scans the RIFF/WAVE container in wav and returns its PCM data
// and format. It walks the chunk list rather than assuming a fixed 44-byte
// header because the fmt chunk size varies between encoders.
//
// Returns an error if wav is not a valid RIFF/WAVE container or if the fmt
// or data chunk cannot be located.
func DecodeWAV(wav []byte) ([]byte, WAVInfo, error) {
	if len(wav) < 12 {
		return nil, WAVInfo{}, errors.New("audio: WAV too short to be a valid RIFF file")
	}
	if string(wav[0:4]) != "RIFF" {
		return nil, WAVInfo{}, errors.New("audio: WAV missing RIFF header")
	}
	if string(wav[8:12]) != "WAVE" {
		return nil, WAVInfo{}, errors.New("audio: WAV missing WAVE identifier")
	}

	var info WAVInfo
	foundFmt := false

	// Walk RIFF chunks starting immediately after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(wav) {
				fmtData := wav[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				foundFmt = true
			}
		case "data":
			if !foundFmt {
				return nil, WAVInfo{}, errors.New("audio: WAV data chunk precedes fmt chunk")
			}
			info.DataOffset = offset + 8
			end := info.DataOffset + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			info.DataLen = end - info.DataOffset
			return wav[info.DataOffset:end], info, nil
		}

		// Advance past this chunk (chunks are word-aligned: pad by 1 if odd size).
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return nil, WAVInfo{}, errors.New("audio: WAV missing data chunk")
}
