package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/jward/sqlcache"
	"github.com/jward/sqlcache/internal/bundle"
)

var (
	success = color.New(color.FgGreen, color.Bold).SprintFunc()
	caution = color.New(color.FgYellow).SprintFunc()
	failure = color.New(color.FgRed, color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
)

// stateLabel colors a build state by severity.
func stateLabel(s sqlcache.State) string {
	switch s {
	case sqlcache.Committed, sqlcache.CommittedClean:
		return success(string(s))
	case sqlcache.CommittedPartial:
		return caution(string(s))
	default:
		return failure(string(s))
	}
}

// printBuildSummary writes the human build summary.
func printBuildSummary(w io.Writer, rep *sqlcache.Report) {
	if rep == nil {
		return
	}
	fmt.Fprintf(w, "%s in %s: %d rebuilt, %d kept, %d removed",
		stateLabel(rep.State), rep.Duration.Round(time.Millisecond),
		len(rep.Rebuilt), len(rep.Kept), len(rep.Removed))
	if n := len(rep.Deferred); n > 0 {
		fmt.Fprintf(w, ", %d deferred", n)
	}
	fmt.Fprintln(w)
	for _, c := range rep.Rebuilt {
		fmt.Fprintf(w, "  %s %s %s\n", success("rebuilt"), c.Query, faint("("+strings.Join(c.Reasons, ", ")+")"))
	}
	for _, q := range rep.Removed {
		fmt.Fprintf(w, "  %s %s\n", caution("removed"), q)
	}
	for _, warn := range rep.Warnings {
		fmt.Fprintf(w, "  %s %s: %s\n", caution("warning"), warn.Query, warn.Message)
	}
	for _, err := range rep.Errors {
		fmt.Fprintf(w, "  %s %s\n", failure("error"), err)
	}
	if rep.Fatal {
		fmt.Fprintf(w, "  %s a required file has no index\n", failure("fatal"))
	}
	if rep.Generation != "" {
		fmt.Fprintf(w, "Generation: %s\n", rep.Generation)
	}
}

// formatBuildText formats a build report as per-file lines.
func formatBuildText(w io.Writer, b CLIBuild) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tPATH\tSTATUS\tENTITIES\tCHANGED")
	for _, f := range b.Files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", f.Role, f.Path, f.Status, f.Entities, strings.Join(f.Changed, ","))
	}
	tw.Flush()
}

// formatEntitiesText formats entity matches as aligned columns.
func formatEntitiesText(w io.Writer, ents []sqlcache.EntityMatch) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tNAME\tKIND\tLINES")
	for _, e := range ents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d-%d\n", e.Role, e.Name, e.Kind, e.StartLine, e.EndLine)
	}
	tw.Flush()
}

// formatBundlesText formats bundle rows as aligned columns.
func formatBundlesText(w io.Writer, infos []sqlcache.BundleInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tWARNINGS\tPATH")
	for _, b := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", b.Query, b.Warnings, filepath.ToSlash(b.Path))
	}
	tw.Flush()
}

// formatBundleText prints a bundle as its inlined snippets, each headed by
// its origin.
func formatBundleText(w io.Writer, b *bundle.Bundle) {
	fmt.Fprintf(w, "-- %s (%s:%d-%d)\n", b.QueryName, b.QueryFile, b.QueryRange.StartLine, b.QueryRange.EndLine)
	fmt.Fprintln(w, strings.TrimRight(b.QuerySQL, "\n"))
	for _, t := range b.Tables {
		fmt.Fprintf(w, "\n-- table %s (%s:%d-%d)\n", t.TableName, t.File, t.Range.StartLine, t.Range.EndLine)
		fmt.Fprintln(w, strings.TrimRight(t.TableSQL, "\n"))
	}
	for _, c := range b.GeneratedCode {
		fmt.Fprintf(w, "\n// %s %s (%s:%d-%d)\n", c.Type, c.Name, c.File, c.Range.StartLine, c.Range.EndLine)
		fmt.Fprintln(w, strings.TrimRight(c.Code, "\n"))
	}
	for _, warn := range b.Warnings {
		fmt.Fprintf(w, "\n-- warning: %s\n", warn)
	}
}

// formatSummaryText formats a generation summary as readable text.
func formatSummaryText(w io.Writer, sum sqlcache.Summary) {
	fmt.Fprintln(w, "Generation Summary")
	fmt.Fprintln(w, "==================")
	fmt.Fprintf(w, "Generation: %s\n", sum.Generation)
	fmt.Fprintf(w, "Run: %s at %s\n", sum.RunID, sum.CreatedAt)
	fmt.Fprintf(w, "Bundles: %d (%d warnings)\n", sum.Bundles, sum.Warnings)
	fmt.Fprintln(w)

	for _, f := range sum.Files {
		fmt.Fprintf(w, "%s: %s, %d lines\n", f.Role, f.Path, f.TotalLines)
		kinds := make([]string, 0, len(f.Kinds))
		for kind := range f.Kinds {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", kind, f.Kinds[kind])
		}
	}
}

// formatVerifyText lists stale artifacts.
func formatVerifyText(w io.Writer, rep sqlcache.VerifyReport) {
	if rep.OK() {
		fmt.Fprintf(w, "%d artifacts up to date\n", rep.Checked)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ARTIFACT\tREASON")
	for _, s := range rep.Stale {
		fmt.Fprintf(tw, "%s\t%s\n", filepath.ToSlash(s.Artifact), s.Reason)
	}
	tw.Flush()
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputResultText writes a CLIResult in text format.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIBuild:
		formatBuildText(w, v)
	case []sqlcache.EntityMatch:
		formatEntitiesText(w, v)
	case []sqlcache.BundleInfo:
		formatBundlesText(w, v)
	case *bundle.Bundle:
		formatBundleText(w, v)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case CLISnippet:
		fmt.Fprintln(w, strings.TrimRight(v.Text, "\n"))
	case sqlcache.Summary:
		formatSummaryText(w, v)
	case sqlcache.VerifyReport:
		formatVerifyText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputError reports err under command in the selected format and marks it
// handled.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

var validFormats = []string{"json", "text"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
