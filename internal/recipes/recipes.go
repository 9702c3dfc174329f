// Package recipes loads the drink recipe book.
//
// The book maps a drink name to the millilitres taken from each reservoir,
// keyed by reservoir id:
//
//	{"Screwdriver": {"1": 50, "2": 0, "3": 100, "4": 0}}
//
// JSON and YAML files are both accepted.
package recipes

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"smart_bartender/internal/models"

	"gopkg.in/yaml.v3"
)

var ErrInvalidRecipe = errors.New("invalid recipe")

// Load reads and parses the recipe file at path.
func Load(path string) (map[string]models.Recipe, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	book, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return book, nil
}

// Parse decodes a recipe book. Zero entries are dropped.
func Parse(raw []byte) (map[string]models.Recipe, error) {
	var doc map[string]map[string]float64
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode recipes: %w", err)
	}

	book := make(map[string]models.Recipe, len(doc))
	for name, parts := range doc {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty name", ErrInvalidRecipe)
		}
		r := models.Recipe{Name: name, Ingredients: make(map[int]float64, len(parts))}
		for key, ml := range parts {
			id, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil {
				return nil, fmt.Errorf("%w: %s: reservoir key %q is not a number", ErrInvalidRecipe, name, key)
			}
			if ml == 0 {
				continue
			}
			r.Ingredients[id] = ml
		}
		book[name] = r
	}
	return book, nil
}

// Validate splits book into the recipes that can be poured with the given
// reservoirs and the reasons the rest were rejected. A recipe is rejected when
// it references an unknown reservoir, has a negative amount, or totals zero.
func Validate(book map[string]models.Recipe, known func(id int) bool) (map[string]models.Recipe, []error) {
	valid := make(map[string]models.Recipe, len(book))
	var rejected []error

	for _, name := range Names(book) {
		r := book[name]
		if err := check(r, known); err != nil {
			rejected = append(rejected, err)
			continue
		}
		valid[name] = r
	}
	return valid, rejected
}

func check(r models.Recipe, known func(id int) bool) error {
	for _, id := range r.ReservoirIDs() {
		if !known(id) {
			return fmt.Errorf("%w: %s: unknown reservoir %d", ErrInvalidRecipe, r.Name, id)
		}
		if r.Ingredients[id] < 0 {
			return fmt.Errorf("%w: %s: negative amount for reservoir %d", ErrInvalidRecipe, r.Name, id)
		}
	}
	if r.TotalML() <= 0 {
		return fmt.Errorf("%w: %s: no ingredients", ErrInvalidRecipe, r.Name)
	}
	return nil
}

// Names returns the recipe names sorted alphabetically.
func Names(book map[string]models.Recipe) []string {
	names := make([]string, 0, len(book))
	for name := range book {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
