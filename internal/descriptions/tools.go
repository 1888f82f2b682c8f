package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	ListDocumentsDescription = `List the syllabus PDFs in the input directory with their processing state.

**When to use:** Before extracting or querying, to see which syllabuses exist and whether they have been processed.

**Returns:** One line per document with size, whether a JSON artifact exists, the last recorded status (processed, skipped or failed), the objective count and the last error.

**Examples:**
• "Which syllabuses failed in the last run?"
• "Has biology.pdf been processed yet?"

**Best practices:** Use the returned names as the path argument of syllabus_extract_file.`

	ExtractFileDescription = `Extract the learning objectives of a single syllabus PDF.

**When to use:** To (re)process one document without running the whole batch, e.g. after replacing a file.

**Why it's useful:** Writes the per-document artifact <stem>.json and returns every objective with its section, subsection, split objective and content items, skill codes, keywords, difficulty (1-3) and content hash.

**Parameters:**
• path: file name relative to the input directory (absolute paths must stay inside it)
• force: reprocess even when the artifact is up to date

**Best practices:** The combined artifact is only rebuilt by syllabus_run_batch; run it afterwards so queries see the new objectives.`

	RunBatchDescription = `Process every syllabus PDF in the input directory.

**When to use:** To build or refresh combined_syllabuses.json and processing_summary.json.

**Why it's useful:** Documents are parsed in parallel; unchanged documents are skipped using the incremental cache and corrupt documents are reported without stopping the run.

**Parameters:**
• force: reprocess every document regardless of the cache

**Returns:** Run id, per-status counts, total objectives and the failed documents with their errors.`

	QueryObjectivesDescription = `Search the objectives produced by the last batch run.

**When to use:** To find objectives for question authoring, curriculum review or coverage checks.

**Filters (all optional, combined with AND):**
• section: case-insensitive text matched against section and subsection headings
• difficulty: 1 (recall), 2 (explain/apply) or 3 (analyse/evaluate)
• skill: skill code such as KC, UK, AS or PS
• q: free text matched against objective, content and keywords
• source_file: restrict to one syllabus, e.g. biology.pdf
• limit: maximum objectives returned (default 50, max 500)

**Examples:**
• "Difficulty 3 objectives in SECTION 2 of biology.pdf"
• "Objectives mentioning photosynthesis"

**Best practices:** Run syllabus_run_batch first; total reports all matches even when limit truncates the list.`

	ServerInfoDescription = `Show the server configuration, input and output directories, the last batch summary and the available tools.

**When to use:** At the start of a session to orient yourself before calling other tools.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"syllabus_list_documents":   ListDocumentsDescription,
	"syllabus_extract_file":     ExtractFileDescription,
	"syllabus_run_batch":        RunBatchDescription,
	"syllabus_query_objectives": QueryObjectivesDescription,
	"syllabus_server_info":      ServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns every tool name in lexical order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
