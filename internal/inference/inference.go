// Package inference maps a markdown file's name and location to a document
// type and canonical document id.
package inference

import (
	"path"
	"regexp"
	"strings"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
)

// IndexFile is the directory index filename that is never ingested.
const IndexFile = "_index.md"

var prefixTypes = map[string]document.DocType{
	"EP": document.TypeEpic,
	"US": document.TypeStory,
	"BG": document.TypeBug,
	"PL": document.TypePlan,
	"TS": document.TypeTestSpec,
	"WF": document.TypeWorkflow,
}

var prefixPattern = regexp.MustCompile(`^(EP|US|BG|PL|TS|WF)\d{4,}`)

var singletonTypes = map[string]document.DocType{
	"prd":      document.TypePRD,
	"trd":      document.TypeTRD,
	"tsd":      document.TypeTSD,
	"personas": document.TypePersonas,
}

var directoryTypes = map[string]document.DocType{
	"epics":      document.TypeEpic,
	"stories":    document.TypeStory,
	"bugs":       document.TypeBug,
	"plans":      document.TypePlan,
	"test-specs": document.TypeTestSpec,
	"workflows":  document.TypeWorkflow,
}

// Result is the inferred type and id of one file.
type Result struct {
	DocType document.DocType
	DocID   string
}

// Infer returns the type and id for filename located at relPath (relative
// to the project root, slash separated). The boolean is false for files
// that must be skipped.
//
// Rules are tried in order and the first match wins:
//  1. _index.md is skipped
//  2. EP/US/BG/PL/TS/WF followed by 4+ digits gives that type; the id is the stem
//  3. prd, trd, tsd and personas (any case) give that type; the id is the lowercased stem
//  4. a parent directory named epics, stories, bugs, plans, test-specs or workflows
//  5. otherwise type other
func Infer(filename, relPath string) (Result, bool) {
	if filename == IndexFile {
		return Result{}, false
	}

	stem := strings.TrimSuffix(filename, path.Ext(filename))
	if stem == "" {
		return Result{}, false
	}

	if m := prefixPattern.FindStringSubmatch(stem); m != nil {
		return Result{DocType: prefixTypes[m[1]], DocID: stem}, true
	}

	lower := strings.ToLower(stem)
	if typ, ok := singletonTypes[lower]; ok {
		return Result{DocType: typ, DocID: lower}, true
	}

	segments := strings.Split(path.Dir(relPath), "/")
	for _, segment := range segments {
		if typ, ok := directoryTypes[segment]; ok {
			return Result{DocType: typ, DocID: stem}, true
		}
	}

	return Result{DocType: document.TypeOther, DocID: stem}, true
}
