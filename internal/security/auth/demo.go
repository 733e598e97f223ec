package auth

import "github.com/yourorg/sity/internal/domain"

// DemoAccount is a ready-made login for demo deployments
type DemoAccount struct {
	Email      string
	Password   string
	Name       string
	University string
	IsDriver   bool
	CarDetails *domain.CarDetails
}

// DemoAccounts are seeded only when the demo accounts flag is on
var DemoAccounts = []DemoAccount{
	{
		Email:      "john@university.edu",
		Password:   "password123",
		Name:       "John Doe",
		University: "State University",
	},
	{
		Email:      "sarah@university.edu",
		Password:   "password123",
		Name:       "Sarah Johnson",
		University: "State University",
		IsDriver:   true,
		CarDetails: &domain.CarDetails{Make: "Honda", Model: "Civic", Color: "Blue", Plate: "SITY-42"},
	},
	{
		Email:      "demo@university.edu",
		Password:   "demo123",
		Name:       "Demo Student",
		University: "State University",
	},
}
