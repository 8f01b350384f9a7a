package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdtdelta/4n6timeliner/internal/csvparser"
	"github.com/cdtdelta/4n6timeliner/internal/fault"
	"github.com/cdtdelta/4n6timeliner/internal/signature"
)

func batch(path string, header []string, rows ...[]string) *csvparser.Batch {
	return &csvparser.Batch{Header: header, Rows: rows, SourcePath: path}
}

func mustNormalizer(t *testing.T, artifact string) Normalizer {
	t.Helper()
	n, ok := Default(Options{}).For(artifact)
	require.True(t, ok, "no normalizer for %s", artifact)
	return n
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-01-01 12:00:00", "2024-01-01T12:00:00Z"},
		{"2024-01-01 12:00:00.1234567", "2024-01-01T12:00:00.1234567Z"},
		{"2024-01-01T12:00:00", "2024-01-01T12:00:00Z"},
		{"2024-01-01T12:00:00.500000Z", "2024-01-01T12:00:00.5Z"},
		{"2024-01-01T12:00:00+02:00", "2024-01-01T10:00:00Z"},
		{"2024-01-01 12:00:00.123 +09:00", "2024-01-01T03:00:00.123Z"},
		{"01/02/2024 15:04:05", "2024-01-02T15:04:05Z"},
		{"1/2/2024 3:04:05 PM", "2024-01-02T15:04:05Z"},
		{"2024/03/04 05:06:07", "2024-03-04T05:06:07Z"},
		{"2024-03-04", "2024-03-04T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeTimestamp(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimestampRejects(t *testing.T) {
	for _, in := range []string{"", "nan", "-", "NaT", "yesterday", "1601-01-01 00:00:00", "13/01/2024 10:00:00"} {
		_, err := ParseTimestamp(in)
		assert.True(t, errors.Is(err, fault.ErrUnparseableTimestamp), in)
	}
}

func TestAmcacheRow(t *testing.T) {
	b := batch("/case/kape/ProgramExecution/20240101_000000_Amcache_AssociatedFileEntries.csv",
		[]string{"ApplicationName", "FullPath", "FileExtension", "SHA1", "FileKeyLastWriteTimestamp"},
		[]string{"Evil", `C:\evil.exe`, ".exe", "abc", "2024-01-01 12:00:00"},
	)

	res, err := mustNormalizer(t, "Amcache").Normalize(b, "/case")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, "2024-01-01T12:00:00Z", row.DateTime)
	assert.Equal(t, "Last Write", row.TimestampInfo)
	assert.Equal(t, "Amcache", row.ArtifactName)
	assert.Equal(t, ToolEZ, row.Tool)
	assert.Equal(t, "Program Execution", row.Description)
	assert.Equal(t, "Evil", row.DataDetails)
	assert.Equal(t, `C:\evil.exe`, row.DataPath)
	assert.Equal(t, "abc", row.SHA1)
	assert.Equal(t, "kape/ProgramExecution/20240101_000000_Amcache_AssociatedFileEntries.csv", row.EvidencePath)
}

func TestPrefetchFansOut(t *testing.T) {
	b := batch("/case/pf.csv",
		[]string{"SourceFilename", "ExecutableName", "RunCount", "SourceCreated", "LastRun", "PreviousRun0", "PreviousRun1"},
		[]string{`C:\Windows\Prefetch\CMD.EXE-1.pf`, "CMD.EXE", "3", "2024-01-01 00:00:00", "2024-01-02 00:00:00", "2024-01-01 06:00:00", ""},
	)

	res, err := mustNormalizer(t, "Prefetch").Normalize(b, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	labels := []string{res.Rows[0].TimestampInfo, res.Rows[1].TimestampInfo, res.Rows[2].TimestampInfo}
	assert.Equal(t, []string{"Source Created", "Last Run", "Previous Run 0"}, labels)
	for _, r := range res.Rows {
		assert.Equal(t, "3", r.Count)
		assert.Equal(t, "CMD.EXE", r.DataDetails)
		assert.Equal(t, "/case/pf.csv", r.EvidencePath)
	}
	assert.Zero(t, res.Skipped)
	assert.Empty(t, res.Issues)
}

func TestUnparseableTimestampReportedOncePerCause(t *testing.T) {
	b := batch("/case/reg.csv",
		[]string{"Category", "Description", "ValueData", "LastWriteTimestamp"},
		[]string{"Autoruns", "Run key", "evil.exe", "garbage"},
		[]string{"Autoruns", "Run key", "good.exe", "2024-05-05 05:05:05"},
		[]string{"Autoruns", "Run key", "other.exe", "more garbage"},
	)

	res, err := mustNormalizer(t, "Registry").Normalize(b, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "good.exe", res.Rows[0].DataPath)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "LastWriteTimestamp", res.Issues[0].Field)
	assert.Equal(t, "unrecognized format", res.Issues[0].Cause)
}

func TestMissingTimestampColumnIsSchemaError(t *testing.T) {
	b := batch("/case/amcache.csv", []string{"ApplicationName", "FullPath"}, []string{"a", "b"})

	_, err := mustNormalizer(t, "Amcache").Normalize(b, "")
	var schemaErr *fault.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "Amcache", schemaErr.Artifact)
	assert.Equal(t, []string{"FileKeyLastWriteTimestamp"}, schemaErr.Missing)
	assert.Equal(t, fault.FatalForFile, fault.Classify(err))
}

func TestEventLogsChannelFilter(t *testing.T) {
	header := []string{"TimeCreated", "Channel", "EventId", "Computer", "MapDescription", "PayloadData1"}
	b := batch("/case/evtx.csv", header,
		[]string{"2024-01-01 10:00:00", "Security", "4624", "WS1", "Successful logon", "Target: bob"},
		[]string{"2024-01-01 10:00:01", "Security", "4688", "WS1", "Process create", ""},
		[]string{"2024-01-01 10:00:02", "Microsoft-Windows-Sysmon/Operational", "1", "WS1", "", ""},
		[]string{"2024-01-01 10:00:03", "System", "7045", "WS1", "Service installed", "evilsvc"},
	)

	res, err := mustNormalizer(t, "EventLogs").Normalize(b, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "4624", res.Rows[0].EventID)
	assert.Equal(t, "Security", res.Rows[0].Description)
	assert.Equal(t, "7045", res.Rows[1].EventID)
	assert.Equal(t, 2, res.Filtered)
}

func TestEventLogsCustomChannels(t *testing.T) {
	n, ok := Default(Options{EventChannels: map[string][]int{"Security": {4688}}}).For("EventLogs")
	require.True(t, ok)

	b := batch("/case/evtx.csv", []string{"TimeCreated", "Channel", "EventId"},
		[]string{"2024-01-01 10:00:00", "Security", "4624"},
		[]string{"2024-01-01 10:00:01", "security", "4688"},
	)
	res, err := n.Normalize(b, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "4688", res.Rows[0].EventID)
}

func TestMFTFilters(t *testing.T) {
	header := []string{"ParentPath", "FileName", "Extension", "Created0x10"}
	rows := [][]string{
		{`.\Users\bob\Downloads`, "payload.EXE", ".EXE", "2024-01-01 00:00:00"},
		{`.\Windows\System32`, "kernel32.dll", ".dll", "2024-01-01 00:00:00"},
		{`.\Users\bob\Documents`, "notes.txt", ".txt", "2024-01-01 00:00:00"},
	}

	all, err := mustNormalizer(t, "MFT").Normalize(batch("/case/mft.csv", header, rows...), "")
	require.NoError(t, err)
	require.Len(t, all.Rows, 3)
	assert.Equal(t, `.\Users\bob\Downloads\payload.EXE`, all.Rows[0].DataPath)
	assert.Equal(t, ".exe", all.Rows[0].FileExtension)
	assert.Equal(t, "File Created", all.Rows[0].Description)

	n, _ := Default(Options{MFTExtensions: []string{".exe", ".dll"}, MFTPaths: []string{`\users\`}}).For("MFT")
	res, err := n.Normalize(batch("/case/mft.csv", header, rows...), "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "payload.EXE", res.Rows[0].DataDetails)
	assert.Equal(t, 2, res.Filtered)
}

func TestChainsawTimestampFallback(t *testing.T) {
	b := batch("/case/sigma.csv",
		[]string{"UtcTime", "Timestamp", "RuleTitle", "EventID", "ComputerName", "Image"},
		[]string{"", "2024-02-02T02:02:02Z", "", "1", "WS2", `C:\x.exe`},
		[]string{"2024-02-03 03:03:03", "2024-02-02T02:02:02Z", "Mimikatz", "1", "WS2", ""},
	)

	res, err := mustNormalizer(t, "Chainsaw_Sigma").Normalize(b, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "2024-02-02T02:02:02Z", res.Rows[0].DateTime)
	assert.Equal(t, "Sigma Rule Triggered", res.Rows[0].Description)
	assert.Equal(t, `C:\x.exe`, res.Rows[0].ProcessName)
	assert.Equal(t, "2024-02-03T03:03:03Z", res.Rows[1].DateTime)
	assert.Equal(t, "Mimikatz", res.Rows[1].Description)
	assert.Equal(t, "Sigma Match", res.Rows[1].ArtifactName)
}

func TestSlashDatesAreMonthFirst(t *testing.T) {
	low, err := NormalizeTimestamp("02/01/2024 10:00:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01T10:00:00Z", low)

	_, err = NormalizeTimestamp("25/01/2024 10:00:00")
	assert.Error(t, err)
}

func TestStampFallsBackPastUnparseableColumn(t *testing.T) {
	b := batch("/case/sigma.csv",
		[]string{"UtcTime", "Timestamp", "RuleTitle"},
		[]string{"garbage", "2024-01-02T00:00:00Z", "Mimikatz"},
		[]string{"garbage", "also garbage", "Broken"},
	)

	res, err := mustNormalizer(t, "Chainsaw_Sigma").Normalize(b, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "2024-01-02T00:00:00Z", res.Rows[0].DateTime)
	assert.Equal(t, "Mimikatz", res.Rows[0].Description)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "UtcTime", res.Issues[0].Field)
}

func TestChainsawLoginAttacks(t *testing.T) {
	b := batch("/case/login.csv",
		[]string{"Timestamp", "detections", "User Name", "Computer", "IP Address", "Logon Type", "count"},
		[]string{"2024-02-02 02:02:02", "Brute force", "admin", "DC1", "10.0.0.5", "3", "42"},
	)
	res, err := mustNormalizer(t, "Chainsaw_LoginAttacks").Normalize(b, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	r := res.Rows[0]
	assert.Equal(t, "Brute force", r.Description)
	assert.Equal(t, "admin", r.User)
	assert.Equal(t, "10.0.0.5", r.IPAddress)
	assert.Equal(t, "3", r.LogonType)
	assert.Equal(t, "42", r.Count)
	assert.Equal(t, ToolChainsaw, r.Tool)
}

func TestHayabusa(t *testing.T) {
	b := batch("/case/hayabusa.csv",
		[]string{"Timestamp", "RuleTitle", "Computer", "Channel", "EventID", "Details"},
		[]string{"2024-01-01 12:00:00.000 +00:00", "Logon", "DC1", "Sec", "4624", "User: bob"},
	)
	res, err := mustNormalizer(t, "Hayabusa").Normalize(b, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "EventLogs", res.Rows[0].ArtifactName)
	assert.Equal(t, "Logon", res.Rows[0].DataDetails)
	assert.Equal(t, "User: bob", res.Rows[0].DataPath)
}

func TestNirsoftClassifiesURL(t *testing.T) {
	b := batch("/case/BrowsingHistory.csv",
		[]string{"URL", "Title", "Visit Time", "User Profile"},
		[]string{"https://www.Google.com/search?q=psexec", "psexec - Google", "1/2/2024 3:04:05 PM", "bob"},
		[]string{"file:///C:/Users/bob/secret.docx", "", "1/2/2024 3:05:05 PM", "bob"},
	)
	res, err := mustNormalizer(t, "NirsoftBrowsingHistory").Normalize(b, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, ActivitySearch, res.Rows[0].Description)
	assert.Equal(t, "https://www.google.com/search?q=psexec", res.Rows[0].DataPath)
	assert.Equal(t, "psexec - Google", res.Rows[0].DataDetails)
	assert.Equal(t, ActivityFileAccess, res.Rows[1].Description)
	assert.Equal(t, "secret.docx", res.Rows[1].DataDetails)
	assert.Equal(t, ToolNirsoft, res.Rows[1].Tool)
}

func TestAxiomPrefetch(t *testing.T) {
	b := batch("/case/axiom/Prefetch Files.csv",
		[]string{"Application Name", "Application Path", "Application Run Count",
			"Last Run Date/Time - UTC+00:00 (M/d/yyyy)", "2nd Last Run Date/Time - UTC+00:00 (M/d/yyyy)"},
		[]string{"CMD.EXE", `\WINDOWS\SYSTEM32\CMD.EXE`, "5", "3/4/2024 1:02:03 PM", "3/3/2024 1:02:03 PM"},
	)
	res, err := mustNormalizer(t, "Axiom_Prefetch").Normalize(b, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Last Run", res.Rows[0].TimestampInfo)
	assert.Equal(t, "2024-03-04T13:02:03Z", res.Rows[0].DateTime)
	assert.Equal(t, "Previous Run 1", res.Rows[1].TimestampInfo)
	assert.Equal(t, "Prefetch", res.Rows[1].ArtifactName)
}

func TestClassifyURL(t *testing.T) {
	tests := []struct {
		url, title   string
		desc, detail string
	}{
		{"file:///C:/Temp/x.pdf", "ignored", ActivityFileAccess, "x.pdf"},
		{"https://bing.com/search?q=x", "Bing", ActivitySearch, "Bing"},
		{"https://example.com/tool.zip", "Tool", ActivityDownload, "Tool"},
		{"https://example.com/", "Home", ActivityWeb, "Home"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			desc, detail := ClassifyURL(tt.url, tt.title)
			assert.Equal(t, tt.desc, desc)
			assert.Equal(t, tt.detail, detail)
		})
	}
}

func TestEvidencePath(t *testing.T) {
	assert.Equal(t, "kape/a.csv", EvidencePath("/case/kape/a.csv", "/case"))
	assert.Equal(t, "/case/kape/a.csv", EvidencePath("/case/kape/a.csv", ""))
}

func TestDefaultCoversEverySignature(t *testing.T) {
	reg := Default(Options{})
	for _, name := range signature.Default().Names() {
		n, ok := reg.For(name)
		require.True(t, ok, name)
		assert.Equal(t, name, n.Artifact())
	}
	assert.Len(t, reg.Artifacts(), signature.Default().Len())
}
