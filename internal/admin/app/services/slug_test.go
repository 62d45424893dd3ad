package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"Crème Brûlée, Explained!", "creme-brulee-explained"},
		{"  --Late night   pizza--  ", "late-night-pizza"},
		{"10 tips for faster delivery", "10-tips-for-faster-delivery"},
		{"Ωμέγα", "article"},
		{"", "article"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := Slugify(tt.title)
			assert.Equal(t, tt.want, got)
			assert.True(t, ValidSlug(got))
		})
	}

	long := Slugify(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len(long), 80)
	assert.True(t, ValidSlug(long))
}

func TestValidSlug(t *testing.T) {
	assert.True(t, ValidSlug("summer-menu-2024"))
	assert.False(t, ValidSlug(""))
	assert.False(t, ValidSlug("-leading"))
	assert.False(t, ValidSlug("trailing-"))
	assert.False(t, ValidSlug("double--dash"))
	assert.False(t, ValidSlug("Upper"))
	assert.False(t, ValidSlug("with space"))
	assert.False(t, ValidSlug(strings.Repeat("a", 81)))
}

func TestSlugCandidate(t *testing.T) {
	assert.Equal(t, "news", slugCandidate("news", 1))
	assert.Equal(t, "news-2", slugCandidate("news", 2))
	assert.Equal(t, "news-12", slugCandidate("news", 12))

	base := strings.Repeat("a", 79) + "-b"
	got := slugCandidate(base[:80], 3)
	assert.Len(t, got, 80)
	assert.True(t, strings.HasSuffix(got, "-3"))
	assert.True(t, ValidSlug(got))
}
