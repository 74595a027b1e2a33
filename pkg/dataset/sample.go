package dataset

import "github.com/1F47E/geo-media-map/pkg/models"

// Sample returns the built-in demo snapshot
func Sample() Static {
	return Static{
		{
			ID:        "1",
			Longitude: -87.07467390219468,
			Latitude:  45.26084693242909,
			Region:    "Wisconsin",
			Country:   "United States",
			Media: &models.Media{
				Name:        "Door County",
				MediaType:   "image",
				Description: "Door County is a peninsula in the northeastern corner of Wisconsin, United States.",
				ImageURL:    "https://images.unsplash.com/photo-1630283922235-a97c7bef05f4?auto=format&fit=crop&w=400&q=80",
			},
		},
		{
			ID:        "2",
			Longitude: -6.849736139043514,
			Latitude:  34.02699608987469,
			City:      "Rabat",
			Country:   "Morocco",
			Media: &models.Media{
				Name:        "Quartier de L'Ocean",
				MediaType:   "image",
				Description: "Quartier de L'Ocean is a neighborhood in the city of Rabat, Morocco.",
				ImageURL:    "https://images.unsplash.com/photo-1706203644201-67b62fbd62c6?auto=format&fit=crop&w=400&q=80",
			},
		},
		{
			ID:        "3",
			Longitude: -68.81279395766443,
			Latitude:  44.38331980132722,
			City:      "Castine",
			Region:    "Maine",
			Country:   "United States",
			Media: &models.Media{
				Name:        "Castine",
				MediaType:   "image",
				Description: "Castine is a town in the state of Maine, United States.",
				ImageURL:    "https://images.unsplash.com/photo-1570845178262-d868c01e72bb?auto=format&fit=crop&w=400&q=80",
			},
		},
	}
}
