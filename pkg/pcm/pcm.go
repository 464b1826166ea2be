// Package pcm converts between float sample buffers and the little-endian
// 16-bit PCM frames the live voice channel speaks, including the capture
// downsample to 16 kHz.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// Voice-channel sample rates: capture is sent at 16 kHz, model audio
// arrives at 24 kHz.
const (
	CaptureRate  = 16000
	PlaybackRate = 24000
)

// FloatTo16BitLE converts normalized float samples to 16-bit little-endian
// PCM. Samples are clamped to [-1, 1]; negative values scale by 0x8000 and
// positive by 0x7FFF so both extremes map onto the int16 range exactly.
func FloatTo16BitLE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7FFF)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// Int16LEToFloat converts 16-bit little-endian PCM back to normalized
// floats. A trailing odd byte is ignored.
func Int16LEToFloat(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		if v < 0 {
			out[i] = float32(v) / 0x8000
		} else {
			out[i] = float32(v) / 0x7FFF
		}
	}
	return out
}

// Downsample reduces a capture buffer from srcRate to dstRate by averaging
// each span of source samples (a cheap low-pass plus decimate). Buffers
// already at the target rate pass through untouched.
func Downsample(buf []float32, srcRate, dstRate int) ([]float32, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d -> %d", srcRate, dstRate)
	}
	if srcRate == dstRate {
		return buf, nil
	}
	if srcRate < dstRate {
		return nil, fmt.Errorf("cannot upsample %d -> %d", srcRate, dstRate)
	}

	ratio := float64(srcRate) / float64(dstRate)
	n := int(math.Round(float64(len(buf)) / ratio))
	out := make([]float32, n)
	src := 0
	for i := 0; i < n; i++ {
		end := int(math.Round(float64(i+1) * ratio))
		var sum float32
		count := 0
		for j := src; j < end && j < len(buf); j++ {
			sum += buf[j]
			count++
		}
		if count > 0 {
			out[i] = sum / float32(count)
		}
		src = end
	}
	return out, nil
}

// EncodeChunk packages a capture buffer for the wire: downsample to the
// capture rate, convert to 16-bit PCM, base64-encode.
func EncodeChunk(samples []float32, srcRate int) (string, error) {
	ds, err := Downsample(samples, srcRate, CaptureRate)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(FloatTo16BitLE(ds)), nil
}

// DecodeChunk unpacks a base64 PCM payload into float samples.
func DecodeChunk(data string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode audio chunk: %w", err)
	}
	return Int16LEToFloat(raw), nil
}
