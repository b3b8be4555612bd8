package main

import (
	"context"
	"errors"
	"fmt"

	domcustomer "github.com/Zhima-Mochi/clubshop/internal/domain/customer"
	dominv "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

type demoProduct struct {
	id, name, description string
	category              dominv.Category
	price                 string
	stock                 int
}

var demoCatalog = []demoProduct{
	{"home-jersey-2026", "Home Jersey 2026", "Official match jersey, home colours", dominv.CategoryUniform, "189.90", 40},
	{"away-jersey-2026", "Away Jersey 2026", "Official match jersey, away colours", dominv.CategoryUniform, "189.90", 25},
	{"training-shorts", "Training Shorts", "Lightweight shorts for training sessions", dominv.CategoryUniform, "69.90", 60},
	{"match-ball", "Match Ball", "FIFA quality size 5 ball", dominv.CategoryEquipment, "249.00", 12},
	{"shin-guards", "Shin Guards", "Adult shin guards with ankle protection", dominv.CategoryEquipment, "79.90", 8},
	{"club-scarf", "Club Scarf", "Knitted scarf with club crest", dominv.CategoryAccessory, "49.90", 100},
	{"water-bottle", "Water Bottle", "750ml bottle with club crest", dominv.CategoryAccessory, "29.90", 5},
	{"whey-protein", "Whey Protein 900g", "Post-training whey protein", dominv.CategorySupplement, "159.00", 15},
	{"club-keychain", "Club Keychain", "Metal keychain", dominv.CategoryOther, "14.90", 0},
}

var demoCustomers = map[string]domcustomer.Status{
	"member@club.test":  domcustomer.StatusActive,
	"coach@club.test":   domcustomer.StatusActive,
	"former@club.test":  domcustomer.StatusInactive,
	"blocked@club.test": domcustomer.StatusBlocked,
}

// seedDemo loads the demo data; products that already exist are left untouched.
func seedDemo(ctx context.Context, be *backend) error {
	for _, d := range demoCatalog {
		p, err := dominv.NewProduct(d.id, d.name, d.description, d.category, decimal.RequireFromString(d.price), d.stock)
		if err != nil {
			return fmt.Errorf("seed product %s: %w", d.id, err)
		}
		if err := be.products.Create(ctx, p); err != nil && !errors.Is(err, dominv.ErrConflict) {
			return fmt.Errorf("seed product %s: %w", d.id, err)
		}
	}
	for email, status := range demoCustomers {
		if err := be.customers.Put(ctx, email, status); err != nil {
			return fmt.Errorf("seed customer %s: %w", email, err)
		}
	}
	return nil
}
