package normalize

// Chainsaw hunts emit different timestamp headers per rule set; the first
// populated one is used.

func chainsawSigma() *table {
	return &table{
		artifact: "Chainsaw_Sigma",
		tool:     ToolChainsaw,
		name:     "Sigma Match",
		stamps:   []stamp{ts("EventTime", "UtcTime", "Timestamp")},
		fields: []column{
			col("Description", "RuleTitle").or("Sigma Rule Triggered"),
			col("DataDetails", "Detection", "RuleId"),
			col("EventId", "EventID"),
			col("Computer", "ComputerName", "Computer"),
			col("User", "User"),
			col("CommandLine", "CommandLine"),
			col("ProcessName", "Image"),
			col("SHA1", "SHA1"),
		},
	}
}

func chainsawLoginAttacks() *table {
	return &table{
		artifact: "Chainsaw_LoginAttacks",
		tool:     ToolChainsaw,
		name:     "Login Attacks",
		stamps:   []stamp{ts("EventTime", "Timestamp", "TimeCreated", "UtcTime")},
		fields: []column{
			col("Description", "detections"),
			col("DataPath", "Threat Path", "Scheduled Task Name", "FileNamePath",
				"Information", "HostApplication", "Service File Name", "Event Data"),
			col("User", "User", "User Name"),
			col("Computer", "Computer"),
			col("UserSID", "User SID"),
			col("MemberSID", "Member SID"),
			col("ProcessName", "Process Name"),
			col("IPAddress", "IP Address"),
			col("LogonType", "Logon Type"),
			col("Count", "count"),
			col("SourceAddress", "Source Address"),
			col("DestinationAddress", "Dest Address"),
			col("ServiceType", "Service Type"),
			col("CommandLine", "CommandLine"),
			col("SHA1", "SHA1"),
		},
	}
}
