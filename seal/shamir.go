package seal

import (
	"crypto/rand"
	"fmt"
)

// Shamir secret sharing over GF(2^8) with the AES reduction polynomial
// x^8 + x^4 + x^3 + x + 1. Each secret byte gets its own random polynomial.

var (
	gfExp [510]byte
	gfLog [256]byte
)

func init() {
	x := byte(1)
	for i := 0; i < 255; i++ {
		gfExp[i] = x
		gfLog[x] = byte(i)
		x = gfMulSlow(x, 3)
	}
	for i := 255; i < len(gfExp); i++ {
		gfExp[i] = gfExp[i-255]
	}
}

func gfMulSlow(a, b byte) byte {
	var p byte
	for b > 0 {
		if b&1 != 0 {
			p ^= a
		}
		hi := a & 0x80
		a <<= 1
		if hi != 0 {
			a ^= 0x1b
		}
		b >>= 1
	}
	return p
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExp[int(gfLog[a])+int(gfLog[b])]
}

func gfDiv(a, b byte) byte {
	if a == 0 {
		return 0
	}
	return gfExp[int(gfLog[a])+255-int(gfLog[b])]
}

// share is one point of every per-byte polynomial, evaluated at X.
type share struct {
	X byte
	Y []byte
}

// splitSecret splits secret into n shares, any t of which recover it.
func splitSecret(secret []byte, n, t int) ([]share, error) {
	if t < 1 || n < t || n > 255 {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidThreshold, t, n)
	}
	shares := make([]share, n)
	for i := range shares {
		shares[i] = share{X: byte(i + 1), Y: make([]byte, len(secret))}
	}
	coeffs := make([]byte, t)
	for b, s := range secret {
		coeffs[0] = s
		if _, err := rand.Read(coeffs[1:]); err != nil {
			return nil, fmt.Errorf("seal: random coefficients: %w", err)
		}
		for i := range shares {
			shares[i].Y[b] = evalPoly(coeffs, shares[i].X)
		}
	}
	return shares, nil
}

// evalPoly evaluates the polynomial with the given coefficients at x (Horner).
func evalPoly(coeffs []byte, x byte) byte {
	var y byte
	for i := len(coeffs) - 1; i >= 0; i-- {
		y = gfMul(y, x) ^ coeffs[i]
	}
	return y
}

// combineShares interpolates the shares at x = 0.
func combineShares(shares []share) ([]byte, error) {
	if len(shares) == 0 {
		return nil, ErrNotEnoughShares
	}
	size := len(shares[0].Y)
	seen := make(map[byte]bool, len(shares))
	for _, s := range shares {
		if s.X == 0 || seen[s.X] || len(s.Y) != size {
			return nil, fmt.Errorf("%w: malformed share set", ErrNotEnoughShares)
		}
		seen[s.X] = true
	}

	secret := make([]byte, size)
	for i, si := range shares {
		// Lagrange basis at zero: prod_j x_j / (x_i - x_j).
		basis := byte(1)
		for j, sj := range shares {
			if i == j {
				continue
			}
			basis = gfMul(basis, gfDiv(sj.X, si.X^sj.X))
		}
		for b := range secret {
			secret[b] ^= gfMul(basis, si.Y[b])
		}
	}
	return secret, nil
}
