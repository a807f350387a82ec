package checkout

import "storefront-service/internal/models"

// ComputeTotal returns the line totals plus delivery cost plus selected services
func ComputeTotal(lines []models.CartLine, delivery models.Delivery, services []models.Service) int64 {
	var total int64
	for _, l := range lines {
		total += l.Total()
	}
	total += delivery.Cost()
	for _, s := range services {
		total += s.Price
	}
	return total
}
