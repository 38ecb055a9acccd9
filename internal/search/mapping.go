package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

const docType = "review"

// buildIndexMapping creates the mapping for review documents.
//
// Titles and review text use English stemming. Author and reviewer names use the
// simple analyzer so names are not stemmed. user_id is an exact keyword for filtering.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName
	indexMapping.TypeField = "type"

	docMapping := bleve.NewDocumentMapping()

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	authorFieldMapping := bleve.NewTextFieldMapping()
	authorFieldMapping.Analyzer = simple.Name
	authorFieldMapping.Store = true
	authorFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("author", authorFieldMapping)

	// Review text is searchable but not stored.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = en.AnalyzerName
	textFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("text", textFieldMapping)

	usernameFieldMapping := bleve.NewTextFieldMapping()
	usernameFieldMapping.Analyzer = simple.Name
	usernameFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("username", usernameFieldMapping)

	for _, field := range []string{"id", "type", "user_id"} {
		keywordFieldMapping := bleve.NewTextFieldMapping()
		keywordFieldMapping.Analyzer = keyword.Name
		docMapping.AddFieldMappingsAt(field, keywordFieldMapping)
	}

	timestampFieldMapping := bleve.NewNumericFieldMapping()
	timestampFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("timestamp", timestampFieldMapping)

	indexMapping.AddDocumentMapping(docType, docMapping)
	indexMapping.DefaultMapping = docMapping

	return indexMapping
}
