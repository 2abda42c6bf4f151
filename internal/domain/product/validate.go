package product

import (
	"fmt"
	"math"
)

// MaxQuantity is the largest quantity one order line can carry; stock and
// line quantities are stored as 32-bit integers.
const MaxQuantity = math.MaxInt32

// QuantityError describes why a requested quantity is not acceptable for a
// product at the time of the check.
type QuantityError struct {
	ProductID string
	Requested int
	Minimum   int
	Available int
	// OutOfRange is set when the quantity is not positive or does not fit
	// MaxQuantity, including sums of repeated lines that overflow.
	OutOfRange bool
}

func (e *QuantityError) Error() string {
	if e.OutOfRange {
		return fmt.Sprintf("product %s: quantity must be between 1 and %d", e.ProductID, MaxQuantity)
	}
	if e.Requested < e.Minimum {
		return fmt.Sprintf("product %s: quantity %d is below the minimum order quantity %d",
			e.ProductID, e.Requested, e.Minimum)
	}
	return fmt.Sprintf("product %s: quantity %d exceeds available stock %d",
		e.ProductID, e.Requested, e.Available)
}

// ValidateQuantity checks qty against the minimum order quantity and the
// stock known at read time. The result is advisory: stock is re-checked
// authoritatively when the supplier confirms the order.
func ValidateQuantity(p Product, qty int) error {
	if err := CheckRange(p.ID, qty); err != nil {
		return err
	}
	if qty < p.MinQuantity || qty > p.Stock {
		return &QuantityError{
			ProductID: p.ID,
			Requested: qty,
			Minimum:   p.MinQuantity,
			Available: p.Stock,
		}
	}
	return nil
}

// CheckRange rejects quantities that are not positive or exceed MaxQuantity.
func CheckRange(id string, qty int) error {
	if qty <= 0 || qty > MaxQuantity {
		return &QuantityError{ProductID: id, Requested: qty, OutOfRange: true}
	}
	return nil
}

// AddQuantity sums two line quantities of the same product, failing when the
// total leaves the 1..MaxQuantity range instead of wrapping around.
func AddQuantity(id string, a, b int) (int, error) {
	if err := CheckRange(id, a); err != nil {
		return 0, err
	}
	if err := CheckRange(id, b); err != nil {
		return 0, err
	}
	if a > MaxQuantity-b {
		return 0, &QuantityError{ProductID: id, Requested: MaxQuantity, OutOfRange: true}
	}
	return a + b, nil
}
