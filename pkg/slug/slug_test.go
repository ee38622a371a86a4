package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"ALL UPPER CASE", "all-upper-case"},
		{"Kadın Giyim", "kadin-giyim"},
		{"Çocuk Ürünleri", "cocuk-urunleri"},
		{"Crème Brûlée Set", "creme-brulee-set"},
		{"Straße", "strasse"},
		{"  --Lamp  (Large)--  ", "lamp-large"},
		{"Mug 350ml / Blue", "mug-350ml-blue"},
		{"日本", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Generate(tt.input))
		})
	}
}

func TestGenerate_NoConsecutiveHyphens(t *testing.T) {
	got := Generate("a -- b __ c")
	assert.Equal(t, "a-b-c", got)
	assert.NotContains(t, got, "--")
}
