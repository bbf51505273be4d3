package testkit

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/latticelabs/canon/pkg/value"
)

// RNG provides a deterministic random number generator.
// If seed is 0, it uses the current time.
func RNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// RandomBytes generates a slice of random bytes of the given length.
func RandomBytes(r *rand.Rand, length int) []byte {
	b := make([]byte, length)
	for i := range b {
		b[i] = byte(r.Intn(256))
	}
	return b
}

// CompressibleBytes generates a slice of highly compressible bytes of the
// given length, varying the repeated pattern per call.
func CompressibleBytes(r *rand.Rand, length int) []byte {
	pattern := []byte(fmt.Sprintf("highly compressible pattern %04d ", r.Intn(10000)))
	b := make([]byte, length)
	for i := 0; i < length; i++ {
		b[i] = pattern[i%len(pattern)]
	}
	return b
}

// FlipByte returns a copy of b with one byte changed at a random position.
func FlipByte(r *rand.Rand, b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	if len(out) > 0 {
		i := r.Intn(len(out))
		out[i] ^= byte(1 + r.Intn(255))
	}
	return out
}

// RandomText generates a random ASCII string, which is always valid UTF-8.
func RandomText(r *rand.Rand, maxLen int) string {
	n := r.Intn(maxLen + 1)
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + r.Intn(26))
	}
	return string(b)
}

// RandomValue generates a random value of bounded depth covering every
// variant. At depth 0 only leaf variants are produced.
func RandomValue(r *rand.Rand, maxDepth int) value.Value {
	leafOnly := maxDepth <= 0
	pick := r.Intn(8)
	if leafOnly && pick >= 5 {
		pick = r.Intn(5)
	}
	switch pick {
	case 0:
		return value.Unit()
	case 1:
		return value.Bool(r.Intn(2) == 1)
	case 2:
		return value.Int(r.Uint32())
	case 3:
		v, _ := value.Symbol(RandomText(r, 12))
		return v
	case 4:
		v, _ := value.String(RandomText(r, 24))
		return v
	case 5:
		n := r.Intn(4)
		elems := make([]value.Value, n)
		for i := range elems {
			elems[i] = RandomValue(r, maxDepth-1)
		}
		return value.Product(elems...)
	case 6:
		return value.Sum(uint32(r.Intn(4)), RandomValue(r, maxDepth-1))
	default:
		return RandomRecord(r, maxDepth)
	}
}

// RandomRecord generates a random record value of bounded depth with unique
// field names.
func RandomRecord(r *rand.Rand, maxDepth int) value.Value {
	n := 1 + r.Intn(4)
	fields := make([]value.Field, n)
	for i := range fields {
		fields[i] = value.Field{
			Name:  fmt.Sprintf("f%d_%s", i, RandomText(r, 4)),
			Value: RandomValue(r, maxDepth-1),
		}
	}
	v, err := value.Record(fields)
	if err != nil {
		panic(err)
	}
	return v
}
