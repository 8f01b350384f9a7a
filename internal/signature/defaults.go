package signature

// ezFolders are the folder names KAPE and the EZ tools write their output to.
var ezFolders = []string{"kape", "ez"}

func ez(name, description string, filenames, folders, headers []string) Signature {
	return Signature{
		Name:               name,
		Tool:               ToolEZ,
		Description:        description,
		Enabled:            true,
		FilenamePatterns:   filenames,
		FoldernamePatterns: append(append([]string(nil), ezFolders...), folders...),
		RequiredHeaders:    headers,
	}
}

// builtins is the static signature table loaded at process start.
func builtins() []Signature {
	amcache := ez("Amcache", "Amcache associated file entries (AmcacheParser)",
		[]string{"AssociatedFileEntries.csv"},
		[]string{"ProgramExecution"},
		[]string{
			"ApplicationName", "ProgramId", "FileKeyLastWriteTimestamp", "SHA1",
			"IsOsComponent", "FullPath", "Name", "FileExtension", "LinkDate",
			"ProductName", "Size", "Version", "ProductVersion", "LongPathHash",
			"BinaryType", "IsPeFile", "BinFileVersion", "BinProductVersion",
			"Usn", "Language", "Description",
		})
	amcache.StrictFilenameMatch = true

	return []Signature{
		amcache,
		ez("AppCompatCache", "Shimcache entries (AppCompatCacheParser)",
			[]string{"appcompatcache"},
			[]string{"ProgramExecution"},
			[]string{"ControlSet", "CacheEntryPosition", "Path", "LastModifiedTimeUTC", "Executed", "Duplicate", "SourceFile"}),
		ez("Deleted", "Recycle bin entries (RBCmd)",
			[]string{"_rbcmd_output"},
			[]string{"FileDeletion"},
			[]string{"SourceName", "FileType", "FileName", "FileSize", "DeletedOn"}),
		ez("EventLogs", "Windows event logs (EvtxECmd)",
			[]string{"evtxecmd"},
			[]string{"EventLogs"},
			[]string{"TimeCreated", "EventId", "Channel", "Computer", "MapDescription", "SourceFile", "PayloadData1"}),
		ez("JumpLists", "Automatic destinations jump lists (JLECmd)",
			[]string{"automaticdestinations"},
			[]string{"FileFolderAccess"},
			[]string{
				"Path", "AppId", "AppIdDescription", "CreationTime",
				"SourceCreated", "SourceModified", "SourceAccessed",
				"TargetCreated", "TargetModified", "TargetAccessed",
			}),
		ez("LNK", "Shortcut files (LECmd)",
			[]string{"_lecmd_output"},
			[]string{"FileFolderAccess"},
			[]string{
				"LocalPath", "TargetIDAbsolutePath", "NetworkPath",
				"SourceCreated", "SourceModified", "SourceAccessed",
				"TargetCreated", "TargetModified", "TargetAccessed",
			}),
		ez("MFT", "Master file table (MFTECmd)",
			[]string{"_mftecmd_$mft_output"},
			[]string{"FileSystem"},
			[]string{"FileName", "ParentPath", "Extension", "Created0x10"}),
		ez("Prefetch", "Prefetch run history (PECmd)",
			[]string{"_pecmd_output"},
			[]string{"ProgramExecution"},
			[]string{
				"ExecutableName", "SourceFilename", "LastRun", "RunCount",
				"SourceCreated", "SourceModified", "SourceAccessed", "Volume0Created",
			}),
		ez("Registry", "Registry batch output (RECmd Kroll batch)",
			[]string{"_recmd_batch_kroll_batch_output"},
			[]string{"Registry"},
			[]string{
				"HivePath", "HiveType", "Description", "Category", "KeyPath",
				"ValueName", "ValueType", "ValueData", "LastWriteTimestamp",
			}),
		ez("Shellbags", "Shellbags (SBECmd)",
			[]string{"_usrclass", "_ntuser"},
			[]string{"FileFolderAccess"},
			[]string{"BagPath", "AbsolutePath", "Value", "LastWriteTime", "FirstInteracted", "LastInteracted"}),
		{
			Name:               "Hayabusa",
			Tool:               ToolHayabusa,
			Description:        "Hayabusa CSV timeline",
			Enabled:            true,
			FilenamePatterns:   []string{"hayabusa", "haya"},
			FoldernamePatterns: []string{"haya"},
			RequiredHeaders: []string{
				"Timestamp", "RuleTitle", "Level", "Computer", "Channel",
				"EventID", "RecordID", "Details", "ExtraFieldInfo", "RuleID",
			},
		},
		{
			Name:               "Chainsaw_Sigma",
			Tool:               ToolChainsaw,
			Description:        "Chainsaw sigma rule matches",
			Enabled:            true,
			FilenamePatterns:   []string{"sigma"},
			FoldernamePatterns: []string{"chainsaw"},
			RequiredHeaders: []string{
				"Timestamp", "RuleTitle", "Detection", "EventID", "ComputerName",
				"User", "CommandLine", "Image", "SHA1",
			},
		},
		{
			Name:               "Chainsaw_LoginAttacks",
			Tool:               ToolChainsaw,
			Description:        "Chainsaw login attack hunts",
			Enabled:            true,
			FilenamePatterns:   []string{"login_attacks", "login"},
			FoldernamePatterns: []string{"chainsaw"},
			RequiredHeaders: []string{
				"Timestamp", "detections", "User", "Computer", "IP Address",
				"Logon Type", "count",
			},
		},
		{
			Name:               "NirsoftBrowsingHistory",
			Tool:               ToolNirsoft,
			Description:        "Nirsoft BrowsingHistoryView export",
			Enabled:            true,
			Encoding:           EncodingCP1252,
			FilenamePatterns:   []string{"nirsoft", "history", "browsing", "web", "browse"},
			FoldernamePatterns: []string{"nirsoft", "browse"},
			RequiredHeaders: []string{
				"URL", "Title", "Visit Time", "Visit Count", "Visited From",
				"Visit Type", "Visit Duration", "Web Browser", "User Profile",
				"Browser Profile", "URL Length", "Typed Count", "History File",
				"Record ID",
			},
		},
		{
			Name:               "Axiom_Prefetch",
			Tool:               ToolAxiom,
			Description:        "Magnet AXIOM prefetch export",
			Enabled:            true,
			FilenamePatterns:   []string{"prefetch"},
			FoldernamePatterns: []string{"axiom"},
			RequiredHeaders: []string{
				"Application Name", "Application Path", "Application Run Count",
				"Last Run Date/Time - UTC+00:00 (M/d/yyyy)",
				"File Created Date/Time - UTC+00:00 (M/d/yyyy)",
				"Volume Created Date/Time - UTC+00:00 (M/d/yyyy)",
			},
		},
		{
			Name:               "Axiom_ChromeHistory",
			Tool:               ToolAxiom,
			Description:        "Magnet AXIOM Chrome web history export",
			Enabled:            true,
			FilenamePatterns:   []string{"chrome web history", "chrome_web_history", "chrome"},
			FoldernamePatterns: []string{"axiom"},
			RequiredHeaders: []string{
				"URL", "Title", "Last Visited Date/Time - UTC+00:00 (M/d/yyyy)",
				"Visit Count", "Typed Count", "User",
			},
		},
	}
}

// Default returns a fresh registry holding the built-in signatures.
func Default() *Registry {
	return NewRegistry(builtins()...)
}
