package util

import (
	"math/rand/v2"
	"strings"
)

// FlowInstancePrefix prefixes flow instance ids.
const FlowInstancePrefix = "fi_"

// GenerateRandomID returns prefix followed by hexLength random hex digits.
// The ids are not secret; math/rand/v2 is sufficient.
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex returns length random lowercase hex digits.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}
	const hexChars = "0123456789abcdef"
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(hexChars[rand.IntN(len(hexChars))])
	}
	return b.String()
}

// GenerateFlowInstanceID returns a new flow instance id.
func GenerateFlowInstanceID() string {
	return GenerateRandomID(FlowInstancePrefix, 16)
}
