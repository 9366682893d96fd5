package seeder

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/Rana718/petquest/internal/schema"
)

// DataGenerator produces plausible values for descriptor fields.
type DataGenerator struct {
	rand    *rand.Rand
	now     time.Time
	counter int
}

func NewDataGenerator(seed int64, now time.Time) *DataGenerator {
	return &DataGenerator{
		rand: rand.New(rand.NewSource(seed)),
		now:  now,
	}
}

// Optional reports whether an optional field should be left out of a row.
func (g *DataGenerator) Optional() bool {
	return g.rand.Intn(10) < 2
}

// Pick returns one of ids at random.
func (g *DataGenerator) Pick(ids []interface{}) interface{} {
	return ids[g.rand.Intn(len(ids))]
}

// Value generates a value that the gateway accepts for f.
func (g *DataGenerator) Value(f schema.Field) interface{} {
	switch f.Type {
	case schema.TypeInteger:
		return g.integer(f.Name)
	case schema.TypeNumber:
		return float64(g.rand.Intn(100000)) / 100
	case schema.TypeBoolean:
		return g.rand.Intn(2) == 1
	case schema.TypeEnum:
		return f.Choices[g.rand.Intn(len(f.Choices))].Value
	case schema.TypeEnumSet:
		var picked []string
		for _, c := range f.Choices {
			if g.rand.Intn(2) == 1 {
				picked = append(picked, c.Value)
			}
		}
		return picked
	}

	switch f.Format {
	case schema.FormatEmail:
		return g.email()
	case schema.FormatDateTime:
		return g.timestamp().Format(time.RFC3339)
	case schema.FormatRichText:
		return "<p>" + g.sentence() + "</p>"
	case schema.FormatMediaURL:
		return fmt.Sprintf("https://picsum.photos/seed/%d/400", g.rand.Intn(1000))
	case schema.FormatFileURL:
		return fmt.Sprintf("https://example.com/files/%d.pdf", g.rand.Intn(1000))
	}
	return g.text(f.Name)
}

func (g *DataGenerator) integer(name string) int64 {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "xp") || strings.Contains(lower, "score"):
		return int64(g.rand.Intn(20)+1) * 5
	case strings.Contains(lower, "progress"):
		return int64(g.rand.Intn(101))
	}
	return int64(g.rand.Intn(1000) + 1)
}

// text looks at the column name first, then falls back to a word.
func (g *DataGenerator) text(name string) string {
	lower := strings.ToLower(name)

	switch {
	case strings.Contains(lower, "email"):
		return g.email()
	case lower == "emoji":
		return g.emoji()
	case strings.Contains(lower, "name"):
		return g.name()
	case strings.Contains(lower, "title"):
		return g.title()
	case strings.Contains(lower, "description") || strings.Contains(lower, "content"):
		return g.sentence()
	case strings.Contains(lower, "url") || strings.Contains(lower, "link"):
		return fmt.Sprintf("https://example.com/page/%d", g.rand.Intn(1000))
	}
	return g.word()
}

func (g *DataGenerator) name() string {
	names := []string{"Biscuit", "Luna", "Mochi", "Pepper", "Rex", "Ziggy", "Olive", "Bean", "Nala", "Tofu"}
	return names[g.rand.Intn(len(names))]
}

func (g *DataGenerator) email() string {
	g.counter++
	domains := []string{"example.com", "test.com", "demo.com"}
	return fmt.Sprintf("player%d_%d@%s", g.counter, g.rand.Intn(100000), domains[g.rand.Intn(len(domains))])
}

func (g *DataGenerator) title() string {
	titles := []string{
		"Morning Walk",
		"Fetch Marathon",
		"Bath Time",
		"Trick Training",
		"Park Adventure",
		"Spring Challenge",
	}
	return titles[g.rand.Intn(len(titles))]
}

func (g *DataGenerator) sentence() string {
	sentences := []string{
		"A short walk around the block.",
		"Play fetch for fifteen minutes.",
		"Brush the coat until it shines.",
		"Teach a new trick with treats.",
		"Explore a new trail together.",
	}
	return sentences[g.rand.Intn(len(sentences))]
}

func (g *DataGenerator) word() string {
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"}
	return words[g.rand.Intn(len(words))]
}

func (g *DataGenerator) emoji() string {
	emoji := []string{"🐶", "🐱", "🦴", "🎾", "🛁", "🏃"}
	return emoji[g.rand.Intn(len(emoji))]
}

func (g *DataGenerator) timestamp() time.Time {
	days := g.rand.Intn(60) - 30
	return g.now.UTC().Truncate(time.Hour).AddDate(0, 0, days)
}
