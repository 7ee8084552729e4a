package capture

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateKeepsRunes(t *testing.T) {
	tests := []struct {
		text  string
		limit int
		want  string
	}{
		{text: "https://erp.example", limit: 40, want: "https://erp.example"},
		{text: "https://erp.example/#/app/отчёты", limit: 30, want: "https://erp.example/#/app/о..."},
		{text: "ёжик", limit: 2, want: "ёж"},
		{text: "ёжик", limit: 4, want: "ёжик"},
	}
	for _, tt := range tests {
		got := truncate(tt.text, tt.limit)
		assert.Equal(t, tt.want, got)
		assert.True(t, utf8.ValidString(got))
		assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.limit)
	}
}
