package badgerstore

import (
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// zstdEncoder and zstdDecoder are shared; EncodeAll and DecodeAll are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("badgerstore: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("badgerstore: zstd decoder initialization failed: " + err.Error())
	}
}

// compress returns the zstd frame of data, or ok=false when compression
// does not make it smaller.
func compress(data []byte) (compressed []byte, ok bool) {
	compressed = zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, false
	}
	return compressed, true
}

func decompress(compressed []byte, size int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != size {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
	}
	return result, nil
}

// Digest returns the hex BLAKE3-256 digest of data. Payloads stored without
// an ID are addressed by it.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
