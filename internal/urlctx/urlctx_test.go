package urlctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Context
	}{
		{"full", "https://host/console/app/acme/reports/daily", Context{Valid: true, Project: "acme", Module: "reports", Page: "daily", RawSegments: []string{"acme", "reports", "daily"}}},
		{"hash route", "https://host/console/#/app/acme/reports?tab=2", Context{Valid: true, Project: "acme", Module: "reports", RawSegments: []string{"acme", "reports"}}},
		{"project only", "https://host/app/acme", Context{Valid: true, Project: "acme", RawSegments: []string{"acme"}}},
		{"marker only", "https://host/app/", Context{RawSegments: []string{}}},
		{"no marker", "https://host/login", Context{}},
		{"escaped", "https://host/app/my%20proj/x", Context{Valid: true, Project: "my proj", Module: "x", RawSegments: []string{"my proj", "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw, "")
			assert.Equal(t, tt.want.Valid, got.Valid)
			assert.Equal(t, tt.want.Project, got.Project)
			assert.Equal(t, tt.want.Module, got.Module)
			assert.Equal(t, tt.want.Page, got.Page)
			assert.ElementsMatch(t, tt.want.RawSegments, got.RawSegments)
		})
	}
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 3, Parse("https://h/app/a/b/c", "").Depth())
	assert.Equal(t, 2, Parse("https://h/app/a/b", "").Depth())
	assert.Equal(t, 1, Parse("https://h/app/a", "").Depth())
	assert.Equal(t, 0, Parse("https://h/x", "").Depth())
}

func TestToURLSegment(t *testing.T) {
	assert.Equal(t, "DailyReport", ToURLSegment("Daily Report"))
	assert.Equal(t, "Ownersview", ToURLSegment("Owner's view"))
	assert.Equal(t, "sales-2024_q1draft", ToURLSegment(" sales-2024_q1 (draft?)"))
	assert.Equal(t, "", ToURLSegment(" !? "))
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "https://h/app/acme/reports/daily", BuildURL("https://h/app/", "acme", "reports", "daily"))
	assert.Equal(t, "https://h/app/acme/reports", BuildURL("https://h/app", "acme", "reports", ""))
	assert.Equal(t, "https://h/app/acme", BuildURL("https://h/app", "acme", "", "ignored"))
}

func TestBase(t *testing.T) {
	base, ok := Base("https://h/console/#/app/acme/reports", "")
	assert.True(t, ok)
	assert.Equal(t, "https://h/console/#/app", base)

	base, ok = Base("https://h/application/app/acme", "")
	assert.True(t, ok)
	assert.Equal(t, "https://h/application/app", base)

	_, ok = Base("https://h/application", "")
	assert.False(t, ok)
}

func TestMainMenuURL(t *testing.T) {
	u, ok := MainMenuURL("https://h/app/acme/reports/daily", "")
	assert.True(t, ok)
	assert.Equal(t, "https://h/app/acme/reports", u)

	_, ok = MainMenuURL("https://h/app/acme", "")
	assert.False(t, ok)
}

func TestExpected(t *testing.T) {
	u, ok := Expected("https://h/#/app/acme/home", "", "Reports", "Daily Summary")
	assert.True(t, ok)
	assert.Equal(t, "https://h/#/app/acme/Reports/DailySummary", u)

	_, ok = Expected("https://h/login", "", "Reports", "Daily")
	assert.False(t, ok)
	_, ok = Expected("https://h/app/acme", "", "!!", "Daily")
	assert.False(t, ok)
}
