package pipeline

import (
	"fmt"
	"strings"

	"github.com/a3tai/syllabus-extractor/internal/syllabus"
)

// DefaultPrefix is used when no subject keyword appears in the filename.
const DefaultPrefix = "GEN"

// subjectPrefixes is checked in order; the first keyword contained in the
// upper-cased filename wins.
var subjectPrefixes = []struct {
	keyword string
	prefix  string
}{
	{"BIO", "BIO"},
	{"CHEM", "CHEM"},
	{"PHYS", "PHYS"},
	{"MATH", "MATH"},
	{"ENG", "ENG"},
	{"BUSINESS", "POB"},
	{"POB", "POB"},
	{"ECON", "ECON"},
	{"IT", "IT"},
	{"SOC", "SOC"},
	{"GEO", "GEO"},
	{"HIST", "HIST"},
	{"AGRI", "AGRI"},
}

// SubjectPrefix returns the ID prefix for a document filename.
func SubjectPrefix(filename string) string {
	upper := strings.ToUpper(filename)
	for _, sp := range subjectPrefixes {
		if strings.Contains(upper, sp.keyword) {
			return sp.prefix
		}
	}
	return DefaultPrefix
}

// Dedup keeps the first objective for each hash, preserving order.
func Dedup(objectives []syllabus.Objective) []syllabus.Objective {
	seen := make(map[string]struct{}, len(objectives))
	unique := make([]syllabus.Objective, 0, len(objectives))
	for _, o := range objectives {
		if _, dup := seen[o.Hash]; dup {
			continue
		}
		seen[o.Hash] = struct{}{}
		unique = append(unique, o)
	}
	return unique
}

// AssignIDs numbers objectives "<PREFIX>-00001", "<PREFIX>-00002", ... in order.
func AssignIDs(objectives []syllabus.Objective, prefix string) {
	for i := range objectives {
		objectives[i].ID = fmt.Sprintf("%s-%05d", prefix, i+1)
	}
}
