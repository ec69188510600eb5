package util

import (
	"encoding/hex"
	"fmt"
)

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

// HexDecodeExact decodes s and requires exactly n bytes of output.
func HexDecodeExact(s string, n int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		WipeBytes(b)
		return nil, fmt.Errorf("hex: expected %d bytes, got %d", n, len(b))
	}
	return b, nil
}
