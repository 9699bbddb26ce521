package keygen

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// New generates a license key of the form PREFIX-TT-RRRRRRRR-HHHHHHHHHHHHHHHH,
// where TT is a timestamp fragment and the rest is random. Collisions are
// guarded by the unique constraint on the key column, not here.
func New(prefix string) string {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	if len(ts) > 2 {
		ts = ts[:2]
	}

	return strings.Join([]string{
		prefix,
		ts,
		randomHex(4),
		randomHex(8),
	}, "-")
}

// Prefix picks the key prefix: universal licenses get UNIV, robot-bound
// ones the first four letters of the robot name.
func Prefix(robotName string, universal bool, fallback string) string {
	if universal {
		return "UNIV"
	}
	if robotName != "" {
		name := strings.ToUpper(robotName)
		if len(name) > 4 {
			name = name[:4]
		}
		return name
	}
	return fallback
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to a timestamp so key creation still succeeds.
		return strings.ToUpper(strconv.FormatInt(time.Now().UnixNano(), 16))[:n*2]
	}
	return strings.ToUpper(hex.EncodeToString(buf))
}
