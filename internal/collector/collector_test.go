package collector

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdtdelta/4n6timeliner/internal/model"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"nan", ""},
		{"NaN", ""},
		{"  banana  ", "banana"},
		{"line1\r\nline2", "line1 line2"},
		{"a\nb\rc", "a b c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), "%q", tt.in)
	}
}

func TestAddRowsSanitizesEveryField(t *testing.T) {
	c := New()
	c.AddRows(model.TimelineRow{
		DateTime:    "2024-01-01T00:00:00Z",
		Tool:        "EZ Tools",
		Description: "multi\nline",
		User:        "nan",
		CommandLine: " cmd.exe /c whoami ",
	})

	rows := c.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "multi line", rows[0].Description)
	assert.Equal(t, "", rows[0].User)
	assert.Equal(t, "cmd.exe /c whoami", rows[0].CommandLine)
}

func TestRowsReturnsCopy(t *testing.T) {
	c := New()
	c.AddRows(model.TimelineRow{Tool: "A"})
	rows := c.Rows()
	rows[0].Tool = "B"
	assert.Equal(t, "A", c.Rows()[0].Tool)
}

func TestOrderPreservedAcrossAdds(t *testing.T) {
	c := New()
	c.AddRows(model.TimelineRow{DataPath: "1"}, model.TimelineRow{DataPath: "2"})
	c.AddRows(model.TimelineRow{DataPath: "3"})

	var got []string
	for _, r := range c.Rows() {
		got = append(got, r.DataPath)
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestSummaryAndReset(t *testing.T) {
	c := New()
	c.AddRows(
		model.TimelineRow{Tool: "EZ Tools", ArtifactName: "Prefetch"},
		model.TimelineRow{Tool: "EZ Tools", ArtifactName: "Prefetch"},
		model.TimelineRow{Tool: "Chainsaw", ArtifactName: "Sigma Match"},
	)

	assert.Equal(t, []Count{
		{Tool: "Chainsaw", Artifact: "Sigma Match", Rows: 1},
		{Tool: "EZ Tools", Artifact: "Prefetch", Rows: 2},
	}, c.Summary())

	c.Reset()
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Summary())
}

func TestConcurrentAdds(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.AddRows(model.TimelineRow{Tool: "T"})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, c.Len())
}
