package catalog

import "storefront-service/internal/models"

// DemoProducts is served when the endpoint is unreachable and nothing is cached
func DemoProducts() []models.Product {
	return []models.Product{
		{ID: "1", Name: "Red Bull Energy Drink", Price: 120, Category: "energy", Volume: "250ml",
			IsSale: true, IsPopular: true, Rating: 4.5,
			Description: "Classic energy drink", Tags: []string{"energy", "classic"}},
		{ID: "2", Name: "Monster Energy", Price: 150, Category: "energy", Volume: "500ml",
			IsNew: true, IsPopular: true, Rating: 4.3,
			Description: "Strong energy drink", Tags: []string{"energy", "strong"}},
		{ID: "3", Name: "Coca-Cola", Price: 80, Category: "soft", Volume: "330ml",
			IsPopular: true, Rating: 4.7,
			Description: "Classic soda", Tags: []string{"soda", "classic"}},
		{ID: "4", Name: "Pepsi Cola", Price: 75, Category: "soft", Volume: "330ml",
			IsSale: true, Rating: 4.2,
			Description: "The other cola", Tags: []string{"soda", "alternative"}},
		{ID: "5", Name: "Aqua Minerale", Price: 45, Category: "water", Volume: "500ml",
			Rating: 4.0,
			Description: "Still drinking water", Tags: []string{"water", "still"}},
		{ID: "6", Name: "Burn Energy", Price: 110, Category: "energy", Volume: "250ml",
			IsNew: true, Rating: 4.1,
			Description: "Fruit flavoured energy drink", Tags: []string{"energy", "fruit"}},
	}
}

// DemoServices is the add-on list paired with DemoProducts
func DemoServices() []models.Service {
	return []models.Service{
		{ID: "1", Name: "Gift box packaging", Price: 50},
		{ID: "2", Name: "Personal greeting card", Price: 25},
		{ID: "3", Name: "Express delivery (within an hour)", Price: 100},
	}
}
