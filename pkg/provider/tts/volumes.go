package tts

import (
	"encoding/binary"
	"errors"
	"math"
)

// DefaultSliceLengthMs is the lip-sync slice duration renderers expect when a
// provider does not specify one.
const DefaultSliceLengthMs = 20

// LipSyncVolumes derives a lip-sync volume envelope from a 16-bit PCM WAV
// clip: one RMS energy sample per sliceMs of audio, normalised to [0,1].
// sliceMs <= 0 falls back to [DefaultSliceLengthMs].
//
// Returns an error when the clip is not a parseable RIFF/WAVE file.
func LipSyncVolumes(wav []byte, sliceMs int) ([]float64, error) {
	if sliceMs <= 0 {
		sliceMs = DefaultSliceLengthMs
	}

	info, err := parseWAV(wav)
	if err != nil {
		return nil, err
	}

	pcm := wav[info.DataOffset:]
	samplesPerSlice := info.SampleRate * info.Channels * sliceMs / 1000
	if samplesPerSlice == 0 {
		return nil, errors.New("tts: slice shorter than one sample")
	}
	bytesPerSlice := samplesPerSlice * 2

	volumes := make([]float64, 0, len(pcm)/bytesPerSlice+1)
	for off := 0; off < len(pcm); off += bytesPerSlice {
		end := off + bytesPerSlice
		if end > len(pcm) {
			end = len(pcm)
		}
		// Normalise against full-scale 16-bit amplitude.
		volumes = append(volumes, computeRMS(pcm[off:end])/32767.0)
	}
	return volumes, nil
}

// computeRMS returns the root-mean-square energy of a 16-bit signed
// little-endian PCM buffer, in PCM sample units (0–32 767). Returns 0 for
// buffers shorter than one sample.
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// wavInfo describes the PCM layout of a parsed WAV clip.
type wavInfo struct {
	DataOffset int // byte offset of the first PCM sample
	SampleRate int // samples per second
	Channels   int // 1 = mono, 2 = stereo
}

// parseWAV walks the RIFF chunks of wav and locates the fmt and data chunks.
func parseWAV(wav []byte) (wavInfo, error) {
	if len(wav) < 12 {
		return wavInfo{}, errors.New("tts: WAV clip too short to be a valid RIFF file")
	}
	if string(wav[0:4]) != "RIFF" {
		return wavInfo{}, errors.New("tts: WAV clip missing RIFF header")
	}
	if string(wav[8:12]) != "WAVE" {
		return wavInfo{}, errors.New("tts: WAV clip missing WAVE identifier")
	}

	var info wavInfo
	foundFmt := false

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
			info.DataOffset = offset + 8
			if !foundFmt {
				// fmt should precede data, but be tolerant.
				info.SampleRate = 22050
				info.Channels = 1
			}
			return info, nil
		}

		// Chunks are word-aligned: pad by 1 if the size is odd.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return wavInfo{}, errors.New("tts: WAV clip missing data chunk")
}

// EncodeWAV wraps raw 16-bit signed little-endian PCM in a RIFF/WAVE header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bps = 16
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bps)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
