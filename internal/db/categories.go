package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CategorySeed is one entry of a categories seed file:
//
//	categories:
//	  - title: Animals
//	    words: [elephant, giraffe, lion]
type CategorySeed struct {
	Title string   `yaml:"title"`
	Words []string `yaml:"words"`
}

type categoryFile struct {
	Categories []CategorySeed `yaml:"categories"`
}

// ReadCategorySeeds parses a YAML seed file, dropping blank words and
// duplicate words within a category.
func ReadCategorySeeds(path string) ([]CategorySeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file categoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	seeds := make([]CategorySeed, 0, len(file.Categories))
	for _, seed := range file.Categories {
		title := strings.TrimSpace(seed.Title)
		if title == "" {
			continue
		}
		words := CleanWords(seed.Words)
		if len(words) == 0 {
			continue
		}
		seeds = append(seeds, CategorySeed{Title: title, Words: words})
	}
	return seeds, nil
}

// LoadCategories upserts every seed by title and returns how many were written.
func LoadCategories(ctx context.Context, repo Repository, seeds []CategorySeed) (int, error) {
	if repo == nil {
		return 0, errors.New("repository is nil")
	}
	loaded := 0
	for _, seed := range seeds {
		if _, err := repo.UpsertCategory(ctx, seed.Title, seed.Words); err != nil {
			return loaded, fmt.Errorf("upsert category %q: %w", seed.Title, err)
		}
		loaded++
	}
	return loaded, nil
}

// CleanWords trims words and drops blanks and repeats, keeping first occurrence order.
func CleanWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	cleaned := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		cleaned = append(cleaned, word)
	}
	return cleaned
}
