// Package cart models the storefront's client-side cart: an ordered list
// of product/variant lines that lives in the browser's local storage and
// is only ever sent to the server as a checkout snapshot.
package cart

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Line is one cart entry, keyed by (ProductID, VariantID).
type Line struct {
	ProductID uuid.UUID `json:"product_id"`
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
}

// Cart accumulates lines. Adding an existing (product, variant) key
// merges quantities instead of duplicating the line.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add puts quantity units of a variant into the cart, merging with an
// existing line for the same key. Non-positive quantities are ignored.
func (c *Cart) Add(productID, variantID uuid.UUID, unitPrice float64, quantity int) {
	if quantity <= 0 {
		return
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID && c.lines[i].VariantID == variantID {
			c.lines[i].Quantity += quantity
			return
		}
	}
	c.lines = append(c.lines, Line{
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	})
}

// Remove deletes the line for the given key, if present.
func (c *Cart) Remove(productID, variantID uuid.UUID) {
	for i := range c.lines {
		if c.lines[i].ProductID == productID && c.lines[i].VariantID == variantID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// SetQuantity replaces a line's quantity; zero or less removes the line.
func (c *Cart) SetQuantity(productID, variantID uuid.UUID, quantity int) {
	if quantity <= 0 {
		c.Remove(productID, variantID)
		return
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID && c.lines[i].VariantID == variantID {
			c.lines[i].Quantity = quantity
			return
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the cart contents in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Total is the sum of unit price times quantity across all lines.
func (c *Cart) Total() float64 {
	var total float64
	for _, line := range c.lines {
		total += line.UnitPrice * float64(line.Quantity)
	}
	return total
}

// Count is the total number of units in the cart.
func (c *Cart) Count() int {
	var count int
	for _, line := range c.lines {
		count += line.Quantity
	}
	return count
}

// MarshalJSON serializes the cart as its line array, matching the shape
// the storefront keeps in local storage.
func (c *Cart) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.lines)
}

// UnmarshalJSON restores a cart from its line array, re-merging any
// duplicate keys a stale client copy may contain.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	c.lines = nil
	for _, line := range lines {
		c.Add(line.ProductID, line.VariantID, line.UnitPrice, line.Quantity)
	}
	return nil
}
