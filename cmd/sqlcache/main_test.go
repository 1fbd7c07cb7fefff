package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sqlcache"
	"github.com/jward/sqlcache/internal/bundle"
	"github.com/jward/sqlcache/internal/index"
)

func TestBuildExit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		rep  *sqlcache.Report
		err  error
		want int
	}{
		{"clean", &sqlcache.Report{State: sqlcache.CommittedClean}, nil, exitOK},
		{"committed", &sqlcache.Report{State: sqlcache.Committed}, nil, exitOK},
		{"partial", &sqlcache.Report{State: sqlcache.CommittedPartial}, nil, exitOK},
		{"fatal", &sqlcache.Report{State: sqlcache.CommittedPartial, Fatal: true}, nil, exitFatal},
		{"aborted", &sqlcache.Report{State: sqlcache.Aborted}, context.Canceled, exitAborted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := buildExit(tt.rep, tt.err)
			if tt.want == exitOK {
				assert.NoError(t, err)
				return
			}
			var ee *exitError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tt.want, ee.code)
		})
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()
	wrapped := &exitError{code: exitAborted, err: context.Canceled}
	assert.ErrorIs(t, wrapped, context.Canceled)
	assert.Equal(t, "context canceled", wrapped.Error())
	assert.Equal(t, "exit status 3", (&exitError{code: exitStale}).Error())
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.ErrorContains(t, validateFormat("yaml"), `invalid format "yaml"`)
}

func TestPrintBuildSummary(t *testing.T) {
	t.Parallel()
	rep := &sqlcache.Report{
		State:      sqlcache.CommittedPartial,
		Generation: "/out/gen-1",
		Rebuilt:    []sqlcache.BundleChange{{Query: "GetUser", Reasons: []string{"schema:users"}}},
		Kept:       []string{"GetItem"},
		Removed:    []string{"Old"},
		Warnings:   []sqlcache.Warning{{Query: "ListGhosts", Message: "UnresolvedDependency: ghosts"}},
		Errors:     []error{errors.New("query.sql:4: malformed query header")},
		Duration:   1500 * time.Microsecond,
	}
	var buf bytes.Buffer
	printBuildSummary(&buf, rep)
	out := buf.String()
	assert.Contains(t, out, "CommittedPartial")
	assert.Contains(t, out, "1 rebuilt, 1 kept, 1 removed")
	assert.Contains(t, out, "GetUser")
	assert.Contains(t, out, "schema:users")
	assert.Contains(t, out, "ListGhosts: UnresolvedDependency: ghosts")
	assert.Contains(t, out, "query.sql:4: malformed query header")
	assert.Contains(t, out, "Generation: /out/gen-1")

	buf.Reset()
	printBuildSummary(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestOutputResultText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := outputResultText(&buf, CLIResult{Results: []sqlcache.EntityMatch{
		{Role: "schema", Name: "users", Kind: "table", StartLine: 1, EndLine: 4},
	}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ROLE")
	assert.Contains(t, buf.String(), "users")
	assert.Contains(t, buf.String(), "1-4")

	buf.Reset()
	b := &bundle.Bundle{
		QueryName:  "GetUser",
		QuerySQL:   "-- name: GetUser :one\nSELECT * FROM users;\n",
		QueryRange: index.Range{StartLine: 1, EndLine: 2},
		QueryFile:  "query.sql",
		Tables: []bundle.TableRef{{
			TableName: "users",
			Range:     index.Range{StartLine: 1, EndLine: 3},
			File:      "schema.sql",
			TableSQL:  "CREATE TABLE users (\n  id int\n);\n",
		}},
		Warnings: []string{"MissingGeneratedCode: GetUser"},
	}
	require.NoError(t, outputResultText(&buf, CLIResult{Results: b}))
	assert.Contains(t, buf.String(), "-- GetUser (query.sql:1-2)")
	assert.Contains(t, buf.String(), "-- table users (schema.sql:1-3)")
	assert.Contains(t, buf.String(), "-- warning: MissingGeneratedCode: GetUser")

	buf.Reset()
	require.NoError(t, outputResultText(&buf, CLIResult{Results: sqlcache.VerifyReport{
		Checked: 2,
		Stale:   []sqlcache.Stale{{Artifact: "index/schema.index.json", Reason: "source schema.sql changed"}},
	}}))
	assert.Contains(t, buf.String(), "index/schema.index.json")

	err = outputResultText(&buf, CLIResult{Results: 42})
	assert.ErrorContains(t, err, "unsupported result type")
}
