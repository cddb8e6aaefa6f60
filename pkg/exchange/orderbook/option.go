package orderbook

import "fmt"

// Option is one of the two complementary outcomes of a binary market.
// Construct values through the constants or OptionFromByte; the raw
// discriminant is a wire-encoding detail, not a domain value.
type Option int8

const (
	OptionA Option = iota
	OptionB
)

func (o Option) String() string {
	switch o {
	case OptionA:
		return "A"
	case OptionB:
		return "B"
	default:
		return "unknown"
	}
}

// Other returns the complementary outcome.
func (o Option) Other() Option {
	if o == OptionA {
		return OptionB
	}
	return OptionA
}

// Byte returns the u8 wire encoding (0 = A, 1 = B).
func (o Option) Byte() byte { return byte(o) }

// OptionFromByte decodes the u8 wire encoding used by CLI/API callers.
func OptionFromByte(b byte) (Option, error) {
	switch b {
	case 0:
		return OptionA, nil
	case 1:
		return OptionB, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidOption, b)
	}
}

// ComplementPrice returns the economically equivalent price for the
// opposite outcome. Prices live in (0,100) so the pair always sums to 100.
func ComplementPrice(price int64) int64 { return 100 - price }
