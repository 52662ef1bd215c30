package utils

import (
	"fmt"
	"math/big"
	"strings"
)

// EtherDecimals is the number of decimals of the native currency of EVM chains.
const EtherDecimals uint8 = 18

// FormatBigInt converts a big.Int value to a human-readable string,
// considering the given number of decimals.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
// The conversion is exact: no float rounding is involved.
func FormatBigInt(amount *big.Int, decimals uint8) (string, error) {
	if amount == nil {
		return "0", nil
	}
	if decimals == 0 {
		return amount.String(), nil
	}

	sign := ""
	abs := new(big.Int).Set(amount)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, divisor, new(big.Int))

	if frac.Sign() == 0 {
		return sign + whole.String(), nil
	}

	fracStr := frac.String()
	if len(fracStr) > int(decimals) {
		// QuoRem guarantees frac < divisor, so this is unreachable for sane input.
		return "", fmt.Errorf("fractional part %s exceeds %d decimals", fracStr, decimals)
	}
	fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
	fracStr = strings.TrimRight(fracStr, "0")

	return sign + whole.String() + "." + fracStr, nil
}

// WeiToEther formats a wei amount as an ether decimal string.
func WeiToEther(wei *big.Int) (string, error) {
	return FormatBigInt(wei, EtherDecimals)
}
