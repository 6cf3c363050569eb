package db

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadCategorySeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	content := `categories:
  - title: " Animals "
    words: [lion, " owl ", lion, ""]
  - title: ""
    words: [skipped]
  - title: Empty
    words: []
  - title: Food
    words:
      - pizza
      - soup
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	seeds, err := ReadCategorySeeds(path)
	if err != nil {
		t.Fatalf("read seeds: %v", err)
	}
	want := []CategorySeed{
		{Title: "Animals", Words: []string{"lion", "owl"}},
		{Title: "Food", Words: []string{"pizza", "soup"}},
	}
	if !reflect.DeepEqual(seeds, want) {
		t.Fatalf("expected %#v, got %#v", want, seeds)
	}
}

func TestReadCategorySeedsRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("categories: [\n"), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	if _, err := ReadCategorySeeds(path); err == nil {
		t.Fatalf("expected a parse error")
	}
}

func TestLoadCategoriesUpserts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seeds := []CategorySeed{{Title: "Animals", Words: []string{"lion"}}}
	if _, err := LoadCategories(ctx, store, seeds); err != nil {
		t.Fatalf("first load: %v", err)
	}
	seeds[0].Words = []string{"lion", "owl"}
	loaded, err := LoadCategories(ctx, store, seeds)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if loaded != 1 {
		t.Fatalf("expected 1 loaded, got %d", loaded)
	}
	categories, _ := store.Categories(ctx)
	if len(categories) != 1 || len(categories[0].Words) != 2 {
		t.Fatalf("expected one updated category, got %#v", categories)
	}
	if _, err := LoadCategories(ctx, nil, seeds); err == nil {
		t.Fatalf("expected an error for a nil repository")
	}
}

func TestCleanWords(t *testing.T) {
	got := CleanWords([]string{" b", "a", "", "b ", "  ", "c"})
	if !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("unexpected words %v", got)
	}
}
