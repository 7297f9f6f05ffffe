//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

// Package datagen provides fake data generation for source seeding.
package datagen

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Faker provides fake data generation using gofakeit.
type Faker struct {
	faker *gofakeit.Faker
}

// NewFaker creates a new Faker with a random seed.
func NewFaker() *Faker {
	return &Faker{
		faker: gofakeit.New(uint64(time.Now().UnixNano())),
	}
}

// NewFakerWithSeed creates a new Faker with a specific seed for reproducibility.
func NewFakerWithSeed(seed uint64) *Faker {
	return &Faker{
		faker: gofakeit.New(seed),
	}
}

// Company generates a random company name.
func (f *Faker) Company() string {
	return f.faker.Company()
}

// FirstName generates a random first name.
func (f *Faker) FirstName() string {
	return f.faker.FirstName()
}

// LastName generates a random last name.
func (f *Faker) LastName() string {
	return f.faker.LastName()
}

// Phone generates a random phone number.
func (f *Faker) Phone() string {
	return f.faker.Phone()
}

// Street generates a random street address.
func (f *Faker) Street() string {
	return f.faker.Street()
}

// City generates a random city name.
func (f *Faker) City() string {
	return f.faker.City()
}

// StateAbbr generates a random US state abbreviation.
func (f *Faker) StateAbbr() string {
	return f.faker.StateAbr()
}

// Zip generates a random postal code.
func (f *Faker) Zip() string {
	return f.faker.Zip()
}

// ProductName generates a random product name.
func (f *Faker) ProductName() string {
	return f.faker.ProductName()
}

// Sentence generates a sentence with the given number of words.
func (f *Faker) Sentence(words int) string {
	return f.faker.Sentence(words)
}

// Price generates a random price in the given range.
func (f *Faker) Price(minPrice, maxPrice float64) float64 {
	return f.faker.Price(minPrice, maxPrice)
}

// Int generates a random integer in the inclusive range [minVal, maxVal].
func (f *Faker) Int(minVal, maxVal int) int {
	if minVal >= maxVal {
		return minVal
	}
	return minVal + f.faker.IntN(maxVal-minVal+1)
}

// DateRange generates a random date between start and end.
func (f *Faker) DateRange(start, end time.Time) time.Time {
	return f.faker.DateRange(start, end)
}

// Choose returns a random element from the slice.
func Choose[T any](f *Faker, items []T) T {
	if len(items) == 0 {
		var zero T
		return zero
	}
	return items[f.Int(0, len(items)-1)]
}

// Truncate truncates a string to a maximum length.
func Truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}

// Weighted picks one of the choices using the given weights.
func (f *Faker) Weighted(choices []string, weights []float32) string {
	anyChoices := make([]any, len(choices))
	for i, c := range choices {
		anyChoices[i] = c
	}
	v, err := f.faker.Weighted(anyChoices, weights)
	if err != nil {
		return choices[0]
	}
	return v.(string)
}
