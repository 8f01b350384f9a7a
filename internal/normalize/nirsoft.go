package normalize

func nirsoftBrowsingHistory() *table {
	return &table{
		artifact: "NirsoftBrowsingHistory",
		tool:     ToolNirsoft,
		name:     "WebHistory",
		stamps:   []stamp{ts("EventTime", "Visit Time")},
		required: []string{"URL"},
		fields: []column{
			col("DataPath", "URL"),
			col("DataDetails", "Title"),
			col("User", "User Profile"),
		},
		enrich: classifyVisit,
	}
}
