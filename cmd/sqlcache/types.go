package main

import "github.com/jward/sqlcache"

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIBuild is a build report with its errors rendered.
type CLIBuild struct {
	*sqlcache.Report
	Errors   []string `json:"errors"`
	Duration string   `json:"duration"`
}

// CLISnippet is the committed text of one entity.
type CLISnippet struct {
	Role string `json:"role"`
	Name string `json:"name"`
	Text string `json:"text"`
}
