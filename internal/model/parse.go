package model

import "fmt"

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("status de pedido desconhecido: %q", s)
	}
	return st, nil
}

func ParseTenderMethod(s string) (TenderMethod, error) {
	m := TenderMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("forma de pagamento desconhecida: %q", s)
	}
	return m, nil
}

func ParsePricingMode(s string) (PricingMode, error) {
	m := PricingMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("modo de preço desconhecido: %q", s)
	}
	return m, nil
}

// ParseDiscountKind treats the empty string as DiscountNone.
func ParseDiscountKind(s string) (DiscountKind, error) {
	if s == "" {
		return DiscountNone, nil
	}
	k := DiscountKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("tipo de desconto desconhecido: %q", s)
	}
	return k, nil
}
