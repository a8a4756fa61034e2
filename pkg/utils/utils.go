package utils

import (
	"encoding/hex"
	"log"
)

// DebugDump logs an offset/hex/ascii dump of data.
func DebugDump(data []byte) {
	log.Printf("[D] dump:\n%s", hex.Dump(data))
}
