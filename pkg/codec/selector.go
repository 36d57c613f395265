package codec

import "fmt"

// MaxSelectorArity is the largest tuple EncodeSelector/DecodeSelector can
// represent: four 16-bit slots packed into a uint64.
const MaxSelectorArity = 4

// maxSelectorValue is the largest raw value a single slot can hold. Values
// are stored as v+1 so a zero slot unambiguously means "unused", which is
// what lets DecodeSelectorInto recover arity from the key alone.
const maxSelectorValue = 1<<16 - 2

// EncodeSelector packs 1..4 16-bit selector values into a uint64, one value
// per 16-bit slot, terminated by the first unused slot being zero (mirroring
// EncodeSignature's terminator scheme one level up in width).
func EncodeSelector(values []uint16) (uint64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("codec: selector requires at least one value")
	}
	if len(values) > MaxSelectorArity {
		return 0, fmt.Errorf("codec: selector arity %d exceeds max %d", len(values), MaxSelectorArity)
	}

	var key uint64
	for i, v := range values {
		if v > maxSelectorValue {
			return 0, fmt.Errorf("codec: selector value %d exceeds max %d", v, maxSelectorValue)
		}
		key |= uint64(v+1) << (16 * uint(i))
	}
	return key, nil
}

// DecodeSelector recovers the full value list encoded by EncodeSelector,
// stopping at the first zero slot (the terminator).
func DecodeSelector(key uint64) []int {
	out := make([]int, 0, MaxSelectorArity)
	for i := 0; i < MaxSelectorArity; i++ {
		slot := uint16(key >> (16 * uint(i)))
		if slot == 0 {
			break
		}
		out = append(out, int(slot-1))
	}
	return out
}

// DecodeSelectorInto decodes key into dst, which must have length >= 4, and
// returns the arity recovered from key's terminator.
func DecodeSelectorInto(key uint64, dst []int) int {
	arity := 0
	for i := 0; i < MaxSelectorArity; i++ {
		slot := uint16(key >> (16 * uint(i)))
		if slot == 0 {
			break
		}
		dst[i] = int(slot - 1)
		arity++
	}
	return arity
}
