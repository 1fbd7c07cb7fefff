package sqlcache

// FormatVersion identifies the artifact format and extraction rules. A change
// forces a full rebuild of any generation written by another version.
const FormatVersion = "sqlcache/1"
