package sqlcache

import (
	"time"

	"github.com/jward/sqlcache/internal/source"
)

// State is the terminal state of a build.
type State string

const (
	// CommittedClean means nothing needed to change; no generation was written.
	CommittedClean State = "CommittedClean"
	// Committed means a new generation was published without file errors.
	Committed State = "Committed"
	// CommittedPartial means the run finished but some files reported
	// errors and kept their previous artifacts.
	CommittedPartial State = "CommittedPartial"
	// Aborted means the run published nothing; the previous generation
	// is untouched.
	Aborted State = "Aborted"
)

// FileStatus is what a build did with one tracked file.
type FileStatus string

const (
	StatusStable    FileStatus = "stable"    // unchanged, committed index reused
	StatusExtracted FileStatus = "extracted" // re-scanned this run
	StatusFrozen    FileStatus = "frozen"    // unreadable or unparseable, previous index kept
	StatusDeferred  FileStatus = "deferred"  // changed but excluded by --files
	StatusAbsent    FileStatus = "absent"    // optional file not present
)

func (s FileStatus) held() bool {
	return s == StatusFrozen || s == StatusDeferred
}

// BuildOptions controls a single build.
type BuildOptions struct {
	// Force ignores committed hashes and fingerprints.
	Force bool
	// Files restricts re-extraction to matching files (gitignore syntax,
	// matched against the root-relative path or the role name).
	Files []string
	// Queries restricts reassembly to matching query names.
	Queries []string
}

// FileReport summarizes one tracked file.
type FileReport struct {
	Role     source.Role `json:"role"`
	Path     string      `json:"path"`
	Status   FileStatus  `json:"status"`
	Entities int         `json:"entities"`
	Changed  []string    `json:"changed,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// BundleChange names a reassembled bundle and what moved under it.
type BundleChange struct {
	Query   string   `json:"query"`
	Reasons []string `json:"reasons"`
}

// Warning is one dependency warning carried by a bundle.
type Warning struct {
	Query   string `json:"query"`
	Message string `json:"message"`
}

// Report describes the outcome of one build.
type Report struct {
	RunID      string         `json:"run_id"`
	State      State          `json:"state"`
	Generation string         `json:"generation,omitempty"`
	Files      []FileReport   `json:"files"`
	Rebuilt    []BundleChange `json:"rebuilt"`
	Kept       []string       `json:"kept"`
	Deferred   []string       `json:"deferred"`
	Removed    []string       `json:"removed"`
	Warnings   []Warning      `json:"warnings"`
	Pruned     []string       `json:"pruned,omitempty"`
	Fatal      bool           `json:"fatal"`
	Duration   time.Duration  `json:"duration_ns"`

	// Errors are file-local failures: parse errors, unreadable files and
	// bundles that could not be assembled.
	Errors []error `json:"-"`
}

// ErrorStrings renders Errors for output.
func (r *Report) ErrorStrings() []string {
	out := make([]string, len(r.Errors))
	for i, err := range r.Errors {
		out[i] = err.Error()
	}
	return out
}

// File returns the report for role, or nil.
func (r *Report) File(role source.Role) *FileReport {
	for i := range r.Files {
		if r.Files[i].Role == role {
			return &r.Files[i]
		}
	}
	return nil
}

// RebuiltNames lists the reassembled bundles.
func (r *Report) RebuiltNames() []string {
	out := make([]string, len(r.Rebuilt))
	for i, c := range r.Rebuilt {
		out[i] = c.Query
	}
	return out
}
