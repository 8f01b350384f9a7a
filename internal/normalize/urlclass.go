package normalize

import (
	"strings"

	"github.com/samber/lo"

	"github.com/cdtdelta/4n6timeliner/internal/model"
)

// URL activity descriptions.
const (
	ActivityFileAccess = "File & Folder Access"
	ActivitySearch     = "Web Search"
	ActivityDownload   = "Web Download"
	ActivityWeb        = "Web Activity"
)

var searchTerms = []string{
	"search", "query", "q=", "p=", "find", "lookup",
	"google.com/search", "bing.com/search", "duckduckgo.com/?q=", "yahoo.com/search",
}

var downloadTerms = []string{
	"download", ".exe", ".zip", ".rar", ".7z", ".msi", ".iso", ".pdf", ".dll", "/downloads/",
}

// ClassifyURL buckets a visited URL by substring heuristics. File URLs carry
// the opened file name as details; everything else keeps the page title.
func ClassifyURL(url, title string) (description, details string) {
	u := strings.ToLower(strings.TrimSpace(url))
	contains := func(term string) bool { return strings.Contains(u, term) }

	switch {
	case strings.HasPrefix(u, "file:///"):
		return ActivityFileAccess, baseName(strings.TrimPrefix(strings.TrimSpace(url), "file:///"))
	case lo.SomeBy(searchTerms, contains):
		return ActivitySearch, title
	case lo.SomeBy(downloadTerms, contains):
		return ActivityDownload, title
	default:
		return ActivityWeb, title
	}
}

// classifyVisit is the enrich step for browser history tables. DataPath
// holds the URL and DataDetails the page title.
func classifyVisit(r *model.TimelineRow) {
	r.DataPath = strings.ToLower(r.DataPath)
	r.Description, r.DataDetails = ClassifyURL(r.DataPath, r.DataDetails)
}
