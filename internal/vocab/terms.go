// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vocab

// Well-known namespaces.
const (
	NSRDF    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSRDFS   = "http://www.w3.org/2000/01/rdf-schema#"
	NSOWL    = "http://www.w3.org/2002/07/owl#"
	NSXSD    = "http://www.w3.org/2001/XMLSchema#"
	NSSchema = "https://schema.org/"
	NSSH     = "http://www.w3.org/ns/shacl#"
	NSFOAF   = "http://xmlns.com/foaf/0.1/"
	NSDBO    = "http://dbpedia.org/ontology/"
)

// Terms used directly by the generator, shape deriver and link resolver.
const (
	RDFType       = NSRDF + "type"
	RDFLangString = NSRDF + "langString"
	RDFSLabel     = NSRDFS + "label"
	OWLSameAs     = NSOWL + "sameAs"
	XSDString     = NSXSD + "string"
	XSDInteger    = NSXSD + "integer"

	SchemaWebPage     = NSSchema + "WebPage"
	SchemaThing       = NSSchema + "Thing"
	SchemaAbout       = NSSchema + "about"
	SchemaMentions    = NSSchema + "mentions"
	SchemaRelatedLink = NSSchema + "relatedLink"
	SchemaSameAs      = NSSchema + "sameAs"
	SchemaImage       = NSSchema + "image"

	FOAFIsPrimaryTopicOf = NSFOAF + "isPrimaryTopicOf"

	SHNodeShape     = NSSH + "NodeShape"
	SHPropertyShape = NSSH + "PropertyShape"
	SHTargetClass   = NSSH + "targetClass"
	SHProperty      = NSSH + "property"
	SHPath          = NSSH + "path"
	SHMinCount      = NSSH + "minCount"
	SHMaxCount      = NSSH + "maxCount"
	SHDatatype      = NSSH + "datatype"
	SHNodeKind      = NSSH + "nodeKind"
	SHIRI           = NSSH + "IRI"
	SHClass         = NSSH + "class"
	SHSeverity      = NSSH + "severity"
	SHViolation     = NSSH + "Violation"
	SHWarning       = NSSH + "Warning"
	SHName          = NSSH + "name"

	// Validation report vocabulary.
	SHConforms       = NSSH + "conforms"
	SHResult         = NSSH + "result"
	SHFocusNode      = NSSH + "focusNode"
	SHResultPath     = NSSH + "resultPath"
	SHResultSeverity = NSSH + "resultSeverity"
	SHResultMessage  = NSSH + "resultMessage"
)

// Project-vocabulary local names.
const (
	LocalInfoboxTemplate = "infoboxTemplate"
	RawSuffix            = "_raw"
)

// StandardPrefixes maps prefix to namespace for the well-known vocabularies.
func StandardPrefixes() map[string]string {
	return map[string]string{
		"rdf":    NSRDF,
		"rdfs":   NSRDFS,
		"owl":    NSOWL,
		"xsd":    NSXSD,
		"schema": NSSchema,
		"sh":     NSSH,
		"foaf":   NSFOAF,
		"dbo":    NSDBO,
	}
}
