package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Saint-Étienne", "saint etienne"},
		{"St-Étienne", "saint etienne"},
		{"Ste Foy lès Lyon", "sainte foy les lyon"},
		{"L'Haÿ-les-Roses", "l hay les roses"},
		{"  PARIS  1er ", "paris 1er"},
		{"", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNameMatches(t *testing.T) {
	t.Parallel()

	assert.True(t, NameMatches("Paris", "Paris 1er Arrondissement"))
	assert.True(t, NameMatches("Paris 1er Arrondissement", "paris"))
	assert.True(t, NameMatches("Besançon", "BESANCON"))
	assert.False(t, NameMatches("Lyon", "Marseille"))
	assert.False(t, NameMatches("", "Lyon"))
}
