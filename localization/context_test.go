package localization_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pitabwire/barberdesk/localization"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{in: "pt_BR", want: "pt-BR"},
		{in: " EN ", want: "en"},
		{in: "es-419", want: "es-419"},
		{in: "", want: ""},
		{in: "Not A Language!", want: "not a language!"},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, localization.Normalize(tc.in))
		})
	}
}

func TestLanguageContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, localization.FromContext(ctx))
	assert.Equal(t, "pt-BR", localization.FromContext(localization.ToContext(ctx, "pt_br")))
}
