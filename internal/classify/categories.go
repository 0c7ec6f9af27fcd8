package classify

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var categoriesYAML []byte

// UncategorizedCategory is returned for labels no category claims.
const UncategorizedCategory = "other"

// Categories maps normalized labels onto a fixed category tree.
type Categories struct {
	byLabel    map[string]string
	categories []string
}

type categoriesFile struct {
	Categories map[string][]string `yaml:"categories"`
}

// LoadCategories parses the embedded category tree.
func LoadCategories() (*Categories, error) {
	return parseCategories(categoriesYAML)
}

func parseCategories(data []byte) (*Categories, error) {
	var file categoriesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse categories: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("no categories defined")
	}

	c := &Categories{byLabel: make(map[string]string)}
	for category, labels := range file.Categories {
		c.categories = append(c.categories, category)
		for _, label := range labels {
			c.byLabel[NormalizeLabel(label)] = category
		}
	}
	sort.Strings(c.categories)
	return c, nil
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jídlo" -> "Jidlo").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeLabel normalizes a label for matching (lowercase, no diacritics, spaces for dashes).
func NormalizeLabel(label string) string {
	label = RemoveDiacritics(label)
	label = strings.ToLower(label)
	label = strings.ReplaceAll(label, "-", " ")
	return strings.TrimSpace(label)
}

// CategoryFor returns the category for a label, or UncategorizedCategory.
func (c *Categories) CategoryFor(label string) string {
	if category, ok := c.byLabel[NormalizeLabel(label)]; ok {
		return category
	}
	return UncategorizedCategory
}

// Names returns the category names in sorted order.
func (c *Categories) Names() []string {
	return append([]string(nil), c.categories...)
}

// Labels returns every known label in sorted order, for prompting.
func (c *Categories) Labels() []string {
	labels := make([]string, 0, len(c.byLabel))
	for label := range c.byLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
