package service

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"mealrun/internal/domain"
)

type OtpGenerator interface {
	Generate() (string, error)
}

// RandomOtpGenerator draws a numeric code with no leading zero, so a
// 4-digit code is in [1000, 9999].
type RandomOtpGenerator struct {
	length int
	low    *big.Int
	span   *big.Int
}

func NewRandomOtpGenerator(length int) *RandomOtpGenerator {
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))
	return &RandomOtpGenerator{length: length, low: low, span: span}
}

func (g *RandomOtpGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, g.span)
	if err != nil {
		return "", fmt.Errorf("drawing otp: %w", err)
	}
	return n.Add(n, g.low).String(), nil
}

func otpMatches(stored, submitted string) bool {
	submitted = strings.TrimSpace(submitted)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

func newReceipt(so *domain.ShopOrder, at time.Time) *domain.Receipt {
	return &domain.Receipt{
		Number:   fmt.Sprintf("RCP-%s-%s", at.UTC().Format("20060102"), uuid.NewString()[:8]),
		IssuedAt: at,
		Items:    append([]domain.Item(nil), so.Items...),
		Subtotal: so.Subtotal,
	}
}

func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
