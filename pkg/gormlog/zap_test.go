package gormlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShortCaller(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/Users/alex/repo/internal/platform/db/postgres.go:38", "internal/platform/db/postgres.go:38"},
		{"/a/b/c/d.go:1", "b/c/d.go:1"},
		{"/x.go:3", "x.go:3"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, shortCaller(tt.in), tt.in)
	}
}
