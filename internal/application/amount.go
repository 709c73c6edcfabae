package application

import (
	"math/big"
	"strings"
)

const maxFractionDigits = 4

// FormatTokenAmount renders a raw integer token amount as a human-readable
// decimal string: scaled down by the token's decimal count, rounded to at
// most four fractional digits, integer part grouped with commas. Unparseable
// input renders as "0".
func FormatTokenAmount(raw string, decimals int) string {
	raw = strings.TrimSpace(raw)
	value, ok := parseAmount(raw)
	if !ok {
		return "0"
	}
	if decimals < 0 {
		decimals = 0
	}

	negative := value.Sign() < 0
	if negative {
		value = new(big.Int).Neg(value)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, remainder := new(big.Int).QuoRem(value, scale, new(big.Int))

	// Round the fraction half-up to maxFractionDigits.
	fracScale := new(big.Int).Exp(big.NewInt(10), big.NewInt(maxFractionDigits), nil)
	frac, rest := new(big.Int).QuoRem(new(big.Int).Mul(remainder, fracScale), scale, new(big.Int))
	if rest.Mul(rest, big.NewInt(2)).Cmp(scale) >= 0 {
		frac.Add(frac, big.NewInt(1))
	}
	if frac.Cmp(fracScale) >= 0 {
		whole.Add(whole, big.NewInt(1))
		frac.SetInt64(0)
	}

	out := groupThousands(whole.String())
	if frac.Sign() > 0 {
		digits := frac.String()
		for len(digits) < maxFractionDigits {
			digits = "0" + digits
		}
		digits = strings.TrimRight(digits, "0")
		out += "." + digits
	}
	if negative && (whole.Sign() > 0 || frac.Sign() > 0) {
		out = "-" + out
	}
	return out
}

func parseAmount(raw string) (*big.Int, bool) {
	if raw == "" {
		return nil, false
	}
	base := 10
	digits := raw
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		base = 16
		digits = raw[2:]
	}
	value, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, false
	}
	return value, true
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
