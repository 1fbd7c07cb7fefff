package store

// File is one tracked source file as committed in a generation.
type File struct {
	Role        string
	Path        string
	ContentHash string
	TotalLines  int
}

// Entity is one indexed entity of a committed file.
type Entity struct {
	FileRole  string
	Name      string
	Kind      string
	Detail    string
	StartLine int
	EndLine   int
	Hash      string
}

// Bundle records one committed bundle artifact and the fingerprint of the
// inputs it was assembled from.
type Bundle struct {
	QueryName    string
	Path         string // relative to the generation directory
	Fingerprint  string
	WarningCount int
}

// Reference kinds recorded in bundle_refs.
const (
	RefQuery = "query"
	RefTable = "table"
	RefCode  = "code"
)

// BundleRef is one dependency edge from a bundle to an entity.
type BundleRef struct {
	QueryName string
	RefKind   string
	RefName   string
	FileRole  string
	Ordinal   int
}

// Metadata keys.
const (
	MetaPipelineFingerprint = "pipeline_fingerprint"
	MetaRunID               = "run_id"
	MetaCreatedAt           = "created_at"
	MetaRoot                = "root"
)
