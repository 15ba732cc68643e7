package audio

import (
	"encoding/binary"
	"math"
)

// RMS returns the root-mean-square level of a 16-bit signed little-endian
// PCM buffer, normalised to [0, 1] where 1 is digital full scale. Returns 0
// for buffers shorter than one sample.
//
// Applied to a whole utterance this is the energy measure used by the
// low-energy drop check; applied to a single frame it drives the volume
// callback.
func RMS(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum/float64(n)) / 32768.0
}

// ZeroCrossingRate returns the fraction of adjacent sample pairs whose signs
// differ, in [0, 1]. Voiced speech typically sits well below broadband noise
// on this measure, which the energy voice detector exploits.
func ZeroCrossingRate(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n < 2 {
		return 0
	}
	crossings := 0
	prev := int16(binary.LittleEndian.Uint16(pcm[0:2]))
	for i := 1; i < n; i++ {
		cur := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		if (prev < 0) != (cur < 0) {
			crossings++
		}
		prev = cur
	}
	return float64(crossings) / float64(n-1)
}
