package domain

import "errors"

// Size is a garment size. The set is closed: products only carry
// variants for the five sizes below.
type Size string

const (
	SizeXS Size = "XS"
	SizeS  Size = "S"
	SizeM  Size = "M"
	SizeL  Size = "L"
	SizeXL Size = "XL"
)

// ErrUnknownSize is returned when parsing a size outside the closed set.
var ErrUnknownSize = errors.New("unknown size")

// AllSizes lists every valid size in display order.
var AllSizes = []Size{SizeXS, SizeS, SizeM, SizeL, SizeXL}

var sizeOrder = map[Size]int{
	SizeXS: 0,
	SizeS:  1,
	SizeM:  2,
	SizeL:  3,
	SizeXL: 4,
}

// ParseSize validates a raw size string against the closed set.
func ParseSize(raw string) (Size, error) {
	s := Size(raw)
	if !s.Valid() {
		return "", ErrUnknownSize
	}
	return s, nil
}

// Valid reports whether s belongs to the closed size set.
func (s Size) Valid() bool {
	_, ok := sizeOrder[s]
	return ok
}

// Order returns the display position of s (XS first). Unknown sizes
// sort last.
func (s Size) Order() int {
	if o, ok := sizeOrder[s]; ok {
		return o
	}
	return len(sizeOrder)
}

func (s Size) String() string {
	return string(s)
}
