package normalize

func hayabusa() *table {
	return &table{
		artifact: "Hayabusa",
		tool:     ToolHayabusa,
		name:     "EventLogs",
		stamps:   []stamp{ts("Event Time", "Timestamp")},
		fields: []column{
			col("Description", "Channel"),
			col("EventId", "EventID"),
			col("DataPath", "Details"),
			col("DataDetails", "RuleTitle"),
			col("Computer", "Computer"),
		},
	}
}
