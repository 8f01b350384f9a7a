package normalize

import (
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/cdtdelta/4n6timeliner/internal/model"
)

// DefaultEventChannels lists the event ids kept per channel from EvtxECmd output.
var DefaultEventChannels = map[string][]int{
	"Application": {1000, 1001},
	"Microsoft-Windows-PowerShell/Operational":                               {4100, 4103, 4104},
	"Microsoft-Windows-RemoteDesktopServices-RdpCoreTS/Operational":          {72, 98, 104, 131, 140},
	"Microsoft-Windows-TerminalServices-LocalSessionManager/Operational":     {21, 22},
	"Microsoft-Windows-TaskScheduler/Operational":                            {106, 140, 141, 129, 200, 201},
	"Microsoft-Windows-TerminalServices-RemoteConnectionManager/Operational": {261, 1149},
	"Microsoft-Windows-WinRM/Operational":                                    {169},
	"Security":                                                               {1102, 4624, 4625, 4648, 4698, 4702, 4720, 4722, 4723, 4724, 4725, 4726, 4732, 4756},
	"SentinelOne/Operational":                                                {1, 31, 55, 57, 67, 68, 77, 81, 93, 97, 100, 101, 104, 110},
	"System":                                                                 {7045},
}

func ezTools(opts Options) []Normalizer {
	return []Normalizer{
		amcache(),
		appCompatCache(),
		deleted(),
		eventLogs(opts.EventChannels),
		jumpLists(),
		lnk(),
		mft(opts.MFTExtensions, opts.MFTPaths),
		prefetch(),
		registry(),
		shellbags(),
	}
}

func amcache() *table {
	return &table{
		artifact: "Amcache",
		tool:     ToolEZ,
		stamps:   []stamp{ts("Last Write", "FileKeyLastWriteTimestamp")},
		fields: []column{
			literal("Description", "Program Execution"),
			col("DataDetails", "ApplicationName"),
			col("DataPath", "FullPath"),
			col("FileExtension", "FileExtension"),
			col("SHA1", "SHA1"),
		},
	}
}

func appCompatCache() *table {
	return &table{
		artifact: "AppCompatCache",
		tool:     ToolEZ,
		stamps:   []stamp{ts("Last Modified Time", "LastModifiedTimeUTC")},
		fields: []column{
			literal("Description", "Program Execution"),
			col("DataPath", "Path"),
		},
		enrich: detailsFromBase,
	}
}

func deleted() *table {
	return &table{
		artifact: "Deleted",
		tool:     ToolEZ,
		name:     "FileDeletion",
		stamps:   []stamp{ts("File Deleted On", "DeletedOn")},
		fields: []column{
			literal("Description", "File System"),
			col("DataPath", "FileName"),
			col("FileSize", "FileSize"),
		},
		enrich: detailsFromBase,
	}
}

func eventLogs(channels map[string][]int) *table {
	if channels == nil {
		channels = DefaultEventChannels
	}
	allowed := make(map[string]map[int]bool, len(channels))
	for ch, ids := range channels {
		allowed[strings.ToLower(ch)] = lo.SliceToMap(ids, func(id int) (int, bool) { return id, true })
	}
	return &table{
		artifact: "EventLogs",
		tool:     ToolEZ,
		stamps:   []stamp{ts("Event Time", "TimeCreated")},
		required: []string{"Channel", "EventId"},
		fields: []column{
			col("Description", "Channel"),
			col("DataDetails", "MapDescription"),
			col("DataPath", "PayloadData1"),
			col("Computer", "Computer"),
			col("EventId", "EventId"),
		},
		keep: func(r *model.TimelineRow) bool {
			ids, ok := allowed[strings.ToLower(r.Description)]
			if !ok {
				return false
			}
			id, err := strconv.Atoi(r.EventID)
			return err == nil && ids[id]
		},
	}
}

func jumpLists() *table {
	return &table{
		artifact: "JumpLists",
		tool:     ToolEZ,
		stamps: []stamp{
			ts("Source Created", "SourceCreated"),
			ts("Source Modified", "SourceModified"),
			ts("Source Accessed", "SourceAccessed"),
			ts("Creation Time", "CreationTime"),
			ts("Last Modified", "LastModified"),
			ts("Target Created", "TargetCreated"),
			ts("Target Modified", "TargetModified"),
			ts("Target Accessed", "TargetAccessed"),
			ts("Tracker Created On", "TrackerCreatedOn"),
		},
		fields: []column{
			literal("Description", "File & Folder Access"),
			col("DataPath", "Path", "LocalPath", "TargetIDAbsolutePath"),
			col("FileSize", "FileSize"),
		},
		enrich: detailsFromBase,
	}
}

func lnk() *table {
	return &table{
		artifact: "LNK",
		tool:     ToolEZ,
		stamps: []stamp{
			ts("Source Created", "SourceCreated"),
			ts("Source Modified", "SourceModified"),
			ts("Source Accessed", "SourceAccessed"),
			ts("Target Created", "TargetCreated"),
			ts("Target Modified", "TargetModified"),
			ts("Target Accessed", "TargetAccessed"),
		},
		fields: []column{
			literal("Description", "File & Folder Access"),
			col("DataPath", "LocalPath", "TargetIDAbsolutePath", "NetworkPath"),
			col("FileSize", "FileSize"),
		},
		enrich: detailsFromBase,
	}
}

func mft(extensions, paths []string) *table {
	exts := lo.Map(extensions, func(s string, _ int) string { return strings.ToLower(s) })
	dirs := lo.Map(paths, func(s string, _ int) string { return strings.ToLower(s) })
	return &table{
		artifact: "MFT",
		tool:     ToolEZ,
		stamps:   []stamp{ts("Created", "Created0x10")},
		required: []string{"FileName"},
		fields: []column{
			literal("Description", "File Created"),
			col("DataDetails", "FileName"),
			col("DataPath", "ParentPath"),
			col("FileExtension", "Extension"),
			col("FileSize", "FileSize"),
		},
		enrich: func(r *model.TimelineRow) {
			r.FileExtension = strings.ToLower(r.FileExtension)
			if r.DataPath == "" {
				r.DataPath = r.DataDetails
				return
			}
			r.DataPath = strings.TrimRight(r.DataPath, `\`) + `\` + r.DataDetails
		},
		keep: func(r *model.TimelineRow) bool {
			if len(exts) > 0 && !lo.SomeBy(exts, func(e string) bool { return strings.HasSuffix(r.FileExtension, e) }) {
				return false
			}
			if len(dirs) > 0 {
				path := strings.ToLower(r.DataPath)
				return lo.SomeBy(dirs, func(d string) bool { return strings.Contains(path, d) })
			}
			return true
		},
	}
}

func prefetch() *table {
	stamps := []stamp{
		ts("Source Created", "SourceCreated"),
		ts("Source Modified", "SourceModified"),
		ts("Source Accessed", "SourceAccessed"),
		ts("Last Run", "LastRun"),
		ts("Volume Created", "Volume0Created"),
	}
	for i := 0; i < 7; i++ {
		n := strconv.Itoa(i)
		stamps = append(stamps, ts("Previous Run "+n, "PreviousRun"+n))
	}
	return &table{
		artifact: "Prefetch",
		tool:     ToolEZ,
		stamps:   stamps,
		fields: []column{
			literal("Description", "Program Execution"),
			col("DataPath", "SourceFilename"),
			col("DataDetails", "ExecutableName"),
			col("Count", "RunCount"),
		},
	}
}

func registry() *table {
	return &table{
		artifact: "Registry",
		tool:     ToolEZ,
		stamps:   []stamp{ts("Last Write", "LastWriteTimestamp")},
		fields: []column{
			col("Description", "Category"),
			col("DataDetails", "Description"),
			col("DataPath", "ValueData"),
		},
	}
}

func shellbags() *table {
	return &table{
		artifact: "Shellbags",
		tool:     ToolEZ,
		stamps: []stamp{
			ts("Last Write", "LastWriteTime"),
			ts("First Interacted", "FirstInteracted"),
			ts("Last Interacted", "LastInteracted"),
		},
		fields: []column{
			literal("Description", "File & Folder Access"),
			col("DataPath", "AbsolutePath"),
			col("DataDetails", "Value"),
		},
	}
}

// detailsFromBase fills DataDetails with the last element of a Windows or
// POSIX style DataPath.
func detailsFromBase(r *model.TimelineRow) {
	if r.DataDetails != "" {
		return
	}
	r.DataDetails = baseName(r.DataPath)
}

func baseName(path string) string {
	path = strings.TrimRight(path, `\/`)
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		return path[i+1:]
	}
	return path
}
