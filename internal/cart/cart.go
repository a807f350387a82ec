package cart

import (
	"storefront-service/internal/errs"
	"storefront-service/internal/models"
)

// DefaultMaxQuantity bounds a single cart line
const DefaultMaxQuantity = 99

var (
	ErrQuantityLimit   = errs.New(errs.CodeValidation, "quantity exceeds the per-line limit")
	ErrInvalidQuantity = errs.New(errs.CodeValidation, "quantity must be positive")
)

// Cart holds at most one line per product, every line with a positive quantity.
// It is not safe for concurrent use; the owning session serializes access.
type Cart struct {
	lines       []models.CartLine
	maxQuantity int
}

// New creates a cart from persisted lines, dropping duplicates and non-positive quantities
func New(lines []models.CartLine, maxQuantity int) *Cart {
	if maxQuantity <= 0 {
		maxQuantity = DefaultMaxQuantity
	}
	c := &Cart{maxQuantity: maxQuantity}
	for _, l := range lines {
		if l.Quantity <= 0 || c.index(l.ProductID) >= 0 {
			continue
		}
		if l.Quantity > maxQuantity {
			l.Quantity = maxQuantity
		}
		c.lines = append(c.lines, l)
	}
	return c
}

// Add merges qty into the product's line or creates one with a product snapshot
func (c *Cart) Add(p models.Product, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	if i := c.index(p.ID); i >= 0 {
		if c.lines[i].Quantity+qty > c.maxQuantity {
			return ErrQuantityLimit
		}
		c.lines[i].Quantity += qty
		return nil
	}

	if qty > c.maxQuantity {
		return ErrQuantityLimit
	}
	c.lines = append(c.lines, models.CartLine{
		ProductID: p.ID,
		Quantity:  qty,
		Name:      p.Name,
		Price:     p.Price,
		Volume:    p.Volume,
		Image:     p.Image,
	})
	return nil
}

// SetQuantity overwrites a line's quantity; qty <= 0 removes the line.
// Setting a quantity for a product without a line is a no-op.
func (c *Cart) SetQuantity(id models.ID, qty int) error {
	i := c.index(id)
	if i < 0 {
		return nil
	}
	if qty <= 0 {
		c.removeAt(i)
		return nil
	}
	if qty > c.maxQuantity {
		return ErrQuantityLimit
	}
	c.lines[i].Quantity = qty
	return nil
}

// Remove drops the product's line if present
func (c *Cart) Remove(id models.ID) {
	if i := c.index(id); i >= 0 {
		c.removeAt(i)
	}
}

// Has reports whether the product has a line
func (c *Cart) Has(id models.ID) bool {
	return c.index(id) >= 0
}

// Lines returns a copy of the lines in insertion order
func (c *Cart) Lines() []models.CartLine {
	return append([]models.CartLine{}, c.lines...)
}

// Clear removes every line
func (c *Cart) Clear() {
	c.lines = nil
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Count returns the total number of units
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Subtotal returns the sum of line totals
func (c *Cart) Subtotal() int64 {
	var sum int64
	for _, l := range c.lines {
		sum += l.Total()
	}
	return sum
}

func (c *Cart) index(id models.ID) int {
	for i, l := range c.lines {
		if l.ProductID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}
