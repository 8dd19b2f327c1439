package stock

import (
	"fmt"
	"regexp"
	"strings"

	"StockLens/internal/model"

	"github.com/go-playground/validator/v10"
)

// Yahoo style symbols: AAPL, BRK-B, 7203.T, ^GSPC, EURUSD=X.
var tickerPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-=^]{0,14}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("ticker", isValidTicker)
	return v
}

func isValidTicker(fl validator.FieldLevel) bool {
	t := fl.Field().String()
	return tickerPattern.MatchString(t) && !strings.Contains(t, "..")
}

// NormalizeTicker upper-cases and trims a symbol and rejects anything that
// is not a plausible ticker. The result is safe to use as a file name.
func NormalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if err := validate.Var(t, "required,ticker"); err != nil {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidTicker, ticker)
	}
	return t, nil
}
