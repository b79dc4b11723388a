package profile

import (
	"fmt"
	"strings"
)

// Quantity is a named measurement channel packed into each channel block.
type Quantity int

const (
	QuantityRange Quantity = iota
	QuantityReflectivity
	QuantitySignal
	QuantityNearIR
	QuantityRange2
	QuantityReflectivity2
	QuantitySignal2

	quantityCount
)

var quantityNames = [quantityCount]string{
	QuantityRange:         "RANGE",
	QuantityReflectivity:  "REFLECTIVITY",
	QuantitySignal:        "SIGNAL",
	QuantityNearIR:        "NEAR_IR",
	QuantityRange2:        "RANGE2",
	QuantityReflectivity2: "REFLECTIVITY2",
	QuantitySignal2:       "SIGNAL2",
}

// String returns the metadata name of the quantity, e.g. "NEAR_IR".
func (q Quantity) String() string {
	if q < 0 || q >= quantityCount {
		return fmt.Sprintf("Quantity(%d)", int(q))
	}
	return quantityNames[q]
}

// Valid reports whether q is one of the known quantities.
func (q Quantity) Valid() bool {
	return q >= 0 && q < quantityCount
}

// ParseQuantity maps a quantity name to its Quantity. Matching ignores case
// and accepts "-" in place of "_".
func ParseQuantity(name string) (Quantity, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	for q, n := range quantityNames {
		if n == norm {
			return Quantity(q), nil
		}
	}
	return 0, fmt.Errorf("unknown quantity %q", name)
}

// AllQuantities lists every known quantity in declaration order.
func AllQuantities() []Quantity {
	qs := make([]Quantity, 0, quantityCount)
	for q := Quantity(0); q < quantityCount; q++ {
		qs = append(qs, q)
	}
	return qs
}
