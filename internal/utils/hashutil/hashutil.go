package hashutil

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

func Blake3Hash(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ContentName is a shortened content hash used to name stored outputs.
func ContentName(data []byte) string {
	return Blake3Hash(data)[:32]
}
