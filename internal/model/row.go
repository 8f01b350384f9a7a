package model

import (
	"github.com/fatih/structs"
	"github.com/stoewer/go-strcase"
)

// Fields is the canonical column order of an exported timeline.
// Used by the exporters, the dedup key validation, and the timeline store schema.
var Fields = []string{
	"DateTime", "TimestampInfo", "ArtifactName", "Tool", "Description",
	"DataDetails", "DataPath", "FileExtension", "EventId", "User",
	"Computer", "CommandLine", "ProcessName", "FileSize", "IPAddress",
	"SourceAddress", "DestinationAddress", "LogonType", "UserSID",
	"MemberSID", "ServiceType", "SHA1", "Count", "EvidencePath",
}

// TimelineRow is one canonical timeline entry. Every field is a string so
// rows from any tool share one schema; DateTime is an ISO-8601 UTC instant.
type TimelineRow struct {
	DateTime           string `json:"DateTime" structs:"DateTime"`
	TimestampInfo      string `json:"TimestampInfo" structs:"TimestampInfo"`
	ArtifactName       string `json:"ArtifactName" structs:"ArtifactName"`
	Tool               string `json:"Tool" structs:"Tool"`
	Description        string `json:"Description" structs:"Description"`
	DataDetails        string `json:"DataDetails" structs:"DataDetails"`
	DataPath           string `json:"DataPath" structs:"DataPath"`
	FileExtension      string `json:"FileExtension" structs:"FileExtension"`
	EventID            string `json:"EventId" structs:"EventId"`
	User               string `json:"User" structs:"User"`
	Computer           string `json:"Computer" structs:"Computer"`
	CommandLine        string `json:"CommandLine" structs:"CommandLine"`
	ProcessName        string `json:"ProcessName" structs:"ProcessName"`
	FileSize           string `json:"FileSize" structs:"FileSize"`
	IPAddress          string `json:"IPAddress" structs:"IPAddress"`
	SourceAddress      string `json:"SourceAddress" structs:"SourceAddress"`
	DestinationAddress string `json:"DestinationAddress" structs:"DestinationAddress"`
	LogonType          string `json:"LogonType" structs:"LogonType"`
	UserSID            string `json:"UserSID" structs:"UserSID"`
	MemberSID          string `json:"MemberSID" structs:"MemberSID"`
	ServiceType        string `json:"ServiceType" structs:"ServiceType"`
	SHA1               string `json:"SHA1" structs:"SHA1"`
	Count              string `json:"Count" structs:"Count"`
	EvidencePath       string `json:"EvidencePath" structs:"EvidencePath"`
}

// goNames maps a canonical column name to the Go field name.
var goNames = func() map[string]string {
	m := make(map[string]string, len(Fields))
	for _, f := range structs.Fields(TimelineRow{}) {
		m[f.Tag("structs")] = f.Name()
	}
	return m
}()

// IsField reports whether name is a canonical column name.
func IsField(name string) bool {
	_, ok := goNames[name]
	return ok
}

// Map returns the row keyed by canonical column name.
func (r TimelineRow) Map() map[string]string {
	out := make(map[string]string, len(Fields))
	for k, v := range structs.Map(r) {
		s, _ := v.(string)
		out[k] = s
	}
	return out
}

// Values returns the row's values in Fields order.
func (r TimelineRow) Values() []string {
	m := r.Map()
	out := make([]string, len(Fields))
	for i, f := range Fields {
		out[i] = m[f]
	}
	return out
}

// Get returns the value of a canonical column, or "" for unknown names.
func (r TimelineRow) Get(name string) string {
	goName, ok := goNames[name]
	if !ok {
		return ""
	}
	s, _ := structs.New(r).Field(goName).Value().(string)
	return s
}

// Set assigns a canonical column. Unknown names are ignored and reported as false.
func (r *TimelineRow) Set(name, value string) bool {
	goName, ok := goNames[name]
	if !ok {
		return false
	}
	return structs.New(r).Field(goName).Set(value) == nil
}

// Apply runs fn over every field and stores its result.
func (r *TimelineRow) Apply(fn func(string) string) {
	for _, f := range structs.New(r).Fields() {
		s, _ := f.Value().(string)
		_ = f.Set(fn(s))
	}
}

// FromMap builds a row from column values keyed by canonical name.
func FromMap(m map[string]string) TimelineRow {
	var r TimelineRow
	for k, v := range m {
		r.Set(k, v)
	}
	return r
}

// Column returns the SQL column name for a canonical field, e.g. "EventId"
// becomes "event_id".
func Column(field string) string {
	return strcase.SnakeCase(field)
}
