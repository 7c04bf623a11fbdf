package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"outbound/internal/util"
)

// Catalog maps brand name to product code to canonical product name.
// Codes are unique only within their brand.
type Catalog map[string]map[string]string

// Load reads the catalog JSON from disk. Callers decide whether a load
// failure is fatal; the returned empty catalog is always safe to use.
func Load(path string) (Catalog, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	var data Catalog
	if err := json.Unmarshal(blob, &data); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if data == nil {
		data = Catalog{}
	}
	return data, nil
}

type Entry struct {
	Brand string
	Code  string
	Name  string
}

// Store is a read-only view over one loaded catalog. Safe for concurrent
// reads; never mutated after construction.
type Store struct {
	data   Catalog
	brands []string
	// normalized name → entries, scoped per brand. Within a brand the
	// lowest code wins when two codes share one name, so exact lookups
	// stay reproducible.
	byBrandName map[string]map[string]Entry
}

func NewStore(data Catalog) *Store {
	if data == nil {
		data = Catalog{}
	}

	brands := make([]string, 0, len(data))
	for brand := range data {
		brands = append(brands, brand)
	}
	sort.Strings(brands)

	byBrandName := make(map[string]map[string]Entry, len(data))
	for _, brand := range brands {
		names := map[string]Entry{}
		codes := make([]string, 0, len(data[brand]))
		for code := range data[brand] {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			norm := util.NormalizeName(data[brand][code])
			if norm == "" {
				continue
			}
			if _, exists := names[norm]; !exists {
				names[norm] = Entry{Brand: brand, Code: code, Name: data[brand][code]}
			}
		}
		byBrandName[brand] = names
	}

	return &Store{data: data, brands: brands, byBrandName: byBrandName}
}

func (s *Store) Empty() bool {
	return len(s.brands) == 0
}

// Brands returns brand names in sorted order.
func (s *Store) Brands() []string {
	out := make([]string, len(s.brands))
	copy(out, s.brands)
	return out
}

func (s *Store) ProductCount() int {
	total := 0
	for _, products := range s.data {
		total += len(products)
	}
	return total
}

// FindExact looks a product name up by normalized equality. With a brand
// the search stays inside that bucket; without one every brand is scanned
// in sorted order and the first hit wins.
func (s *Store) FindExact(name, brand string) (Entry, bool) {
	norm := util.NormalizeName(name)
	if norm == "" {
		return Entry{}, false
	}

	if brand != "" {
		entry, ok := s.byBrandName[brand][norm]
		return entry, ok
	}
	for _, b := range s.brands {
		if entry, ok := s.byBrandName[b][norm]; ok {
			return entry, true
		}
	}
	return Entry{}, false
}

// Subset returns the brand-filtered catalog when the brand exists,
// otherwise the whole catalog. The result aliases the store's data and
// must be treated as read-only.
func (s *Store) Subset(brand string) Catalog {
	if brand != "" {
		if products, ok := s.data[brand]; ok {
			return Catalog{brand: products}
		}
	}
	return s.data
}

// MarshalSubset serializes a brand-filtered view for prompt embedding.
func (s *Store) MarshalSubset(brand string) (string, error) {
	blob, err := json.Marshal(s.Subset(brand))
	if err != nil {
		return "", err
	}
	return string(blob), nil
}
