package normalize

import (
	"fmt"

	"github.com/cdtdelta/4n6timeliner/internal/model"
)

// Axiom suffixes every date column with the export zone and date format.
const axiomZone = " Date/Time - UTC+00:00 (M/d/yyyy)"

func axiomColumn(prefix string) string {
	return prefix + axiomZone
}

var ordinals = []string{"2nd", "3rd", "4th", "5th", "6th", "7th", "8th"}

func axiomPrefetch() *table {
	stamps := []stamp{
		ts("Source Created", axiomColumn("File Created")),
		ts("Last Run", axiomColumn("Last Run")),
	}
	for i, ord := range ordinals {
		stamps = append(stamps, ts(fmt.Sprintf("Previous Run %d", i+1), axiomColumn(ord+" Last Run")))
	}
	stamps = append(stamps, ts("Volume Created", axiomColumn("Volume Created")))

	return &table{
		artifact: "Axiom_Prefetch",
		tool:     ToolAxiom,
		name:     "Prefetch",
		stamps:   stamps,
		fields: []column{
			literal("Description", "Program Execution"),
			col("DataPath", "Application Path"),
			col("DataDetails", "Application Name"),
			col("Count", "Application Run Count"),
		},
	}
}

func axiomChromeHistory() *table {
	return &table{
		artifact: "Axiom_ChromeHistory",
		tool:     ToolAxiom,
		name:     "Web History",
		stamps:   []stamp{ts("Last Visited", axiomColumn("Last Visited"))},
		required: []string{"URL"},
		fields: []column{
			col("DataPath", "URL"),
			col("DataDetails", "Title"),
		},
		enrich: classifyVisit,
		keep: func(r *model.TimelineRow) bool {
			return r.DataPath != ""
		},
	}
}
