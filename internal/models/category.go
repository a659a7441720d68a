// Package models defines the data structures shared by the dictation pipeline.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the classification label assigned to a piece of dictated text.
type Category string

const (
	CategoryNote           Category = "note"
	CategoryTask           Category = "task"
	CategoryIngredient     Category = "ingredient"
	CategoryRecipe         Category = "recipe"
	CategoryRecommendation Category = "recommendation"
	CategoryIdea           Category = "idea"
	CategoryWordle         Category = "wordle"
	CategoryRestaurant     Category = "restaurant"
	CategoryPersonUpdate   Category = "person_update"
)

// ErrUnknownCategory is returned when a label is not one of the nine categories.
var ErrUnknownCategory = errors.New("unknown category")

var allCategories = []Category{
	CategoryNote,
	CategoryTask,
	CategoryIngredient,
	CategoryRecipe,
	CategoryRecommendation,
	CategoryIdea,
	CategoryWordle,
	CategoryRestaurant,
	CategoryPersonUpdate,
}

// AllCategories returns every category in a fixed order.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// ParseCategory normalizes s and maps it onto a known category.
func ParseCategory(s string) (Category, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "_")
	norm = strings.ReplaceAll(norm, "-", "_")
	for _, c := range allCategories {
		if string(c) == norm {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}
