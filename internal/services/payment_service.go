package services

import (
	"fmt"
	"math"
	"strconv"

	"ozergarant/internal/models"
)

// usdtTRC20Contract is the USDT token contract on Tron.
const usdtTRC20Contract = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

// PaymentInstructions is what the payer needs to send the money.
type PaymentInstructions struct {
	DealID   int64                `json:"deal_id"`
	DealCode string               `json:"deal_code"`
	Method   models.PaymentMethod `json:"method"`
	Address  string               `json:"address"`
	Amount   float64              `json:"amount"`
	URI      string               `json:"uri"`
}

type PaymentResolver interface {
	Resolve(method models.PaymentMethod) (string, error)
	TransferURI(method models.PaymentMethod, address string, amount float64) (string, error)
	Methods() []models.PaymentMethod
}

type paymentResolver struct {
	addresses map[models.PaymentMethod]string
}

// NewPaymentResolver — статическая таблица адресов из конфига.
// Метод с пустым адресом считается неподдерживаемым.
func NewPaymentResolver(trc20, ton string) PaymentResolver {
	addrs := map[models.PaymentMethod]string{}
	if trc20 != "" {
		addrs[models.MethodTRC20] = trc20
	}
	if ton != "" {
		addrs[models.MethodTON] = ton
	}
	return &paymentResolver{addresses: addrs}
}

func (r *paymentResolver) Resolve(method models.PaymentMethod) (string, error) {
	addr, ok := r.addresses[method]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	return addr, nil
}

// Methods lists configured rails in a stable order.
func (r *paymentResolver) Methods() []models.PaymentMethod {
	var out []models.PaymentMethod
	for _, m := range []models.PaymentMethod{models.MethodTRC20, models.MethodTON} {
		if _, ok := r.addresses[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

func (r *paymentResolver) TransferURI(method models.PaymentMethod, address string, amount float64) (string, error) {
	switch method {
	case models.MethodTRC20:
		return fmt.Sprintf("tron:%s?amount=%s&token=%s", address, formatAmount(amount), usdtTRC20Contract), nil
	case models.MethodTON:
		// сумма в нанотонах, дробная часть отбрасывается
		nano := int64(math.Trunc(amount * 1e9))
		return fmt.Sprintf("ton://transfer/%s?amount=%d&text=Deal_Payment", address, nano), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
}

// formatAmount prints the shortest decimal form: 50 → "50", 10.5 → "10.5".
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
