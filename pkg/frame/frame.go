package frame

// A block of normalized float samples, nominally in [-1.0, 1.0].
//
// Samples outside that range (and NaN/Inf) may arrive from upstream gain
// staging; consumers must not assume the range holds.
type PCMFrame []float32

// A block of signed 16-bit PCM samples, single channel.
type PCM16Frame []int16

// Bytes as they go on the wire.
type EncodedFrame []byte
