package payment

import (
	"strings"

	"github.com/Zhima-Mochi/clubshop/internal/domain/validation"
)

// Method is how a customer settled an order at the club desk.
type Method string

const (
	MethodPix  Method = "pix"
	MethodCash Method = "cash"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodPix, MethodCash:
		return m, nil
	case "":
		return "", validation.New("paymentMethod", "is required")
	default:
		return "", validation.New("paymentMethod", "must be %q or %q", MethodPix, MethodCash)
	}
}
