package random

import (
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestLetters(t *testing.T) {
	tests := []struct {
		name    string
		length  uint
		wantErr bool
	}{
		{
			name:    "zero length",
			length:  0,
			wantErr: false,
		},
		{
			name:    "32 length",
			length:  32,
			wantErr: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Letters(tt.length)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, int(tt.length))
			require.Empty(t, strings.Trim(got, string(allowedLetters)), "only letters expected")
		})
	}
}

func TestFloat(t *testing.T) {
	for range 100 {
		f, err := Float()
		require.NoError(t, err)
		require.GreaterOrEqual(t, f, 0.0)
		require.Less(t, f, 1.0)
	}
}
