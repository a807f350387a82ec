package cart

import "storefront-service/internal/models"

// Wishlist keeps one snapshot entry per product
type Wishlist struct {
	entries []models.WishlistEntry
}

// NewWishlist creates a wishlist from persisted entries, dropping duplicates
func NewWishlist(entries []models.WishlistEntry) *Wishlist {
	w := &Wishlist{}
	for _, e := range entries {
		if !w.Contains(e.ProductID) {
			w.entries = append(w.entries, e)
		}
	}
	return w
}

// Toggle adds the product or removes it when already saved. Returns true if the product is now saved.
func (w *Wishlist) Toggle(p models.Product) bool {
	if w.Contains(p.ID) {
		w.Remove(p.ID)
		return false
	}
	w.entries = append(w.entries, models.WishlistEntry{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Volume:    p.Volume,
		Image:     p.Image,
	})
	return true
}

// Remove drops the product if it is saved
func (w *Wishlist) Remove(id models.ID) {
	for i, e := range w.entries {
		if e.ProductID == id {
			w.entries = append(w.entries[:i], w.entries[i+1:]...)
			return
		}
	}
}

// Contains reports whether the product is saved
func (w *Wishlist) Contains(id models.ID) bool {
	for _, e := range w.entries {
		if e.ProductID == id {
			return true
		}
	}
	return false
}

// Entries returns a copy of the saved entries
func (w *Wishlist) Entries() []models.WishlistEntry {
	return append([]models.WishlistEntry{}, w.entries...)
}
