package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/sqlcache"
	"github.com/jward/sqlcache/internal/config"
	"github.com/jward/sqlcache/internal/source"
)

var (
	flagRole   string
	flagKinds  []string
	flagKind   string
	flagLimit  int
	flagOffset int
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Read the committed generation",
	Long:  "Answer questions from the committed generation without reading the live sources. All line numbers are 1-based.",
}

func init() {
	lookupCmd.PersistentFlags().StringVar(&flagRole, "role", "", "restrict to one file role: schema|query|models|query_impl")

	searchCmd.Flags().StringSliceVar(&flagKinds, "kind", nil, "restrict to entity kinds (e.g. table,view)")
	searchCmd.Flags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	searchCmd.Flags().IntVar(&flagOffset, "offset", 0, "pagination offset")
	entitiesCmd.Flags().StringVar(&flagKind, "kind", "", "restrict to one entity kind")

	lookupCmd.AddCommand(entityCmd)
	lookupCmd.AddCommand(entitiesCmd)
	lookupCmd.AddCommand(bundleCmd)
	lookupCmd.AddCommand(bundlesCmd)
	lookupCmd.AddCommand(dependentsCmd)
	lookupCmd.AddCommand(snippetCmd)
	lookupCmd.AddCommand(searchCmd)
	lookupCmd.AddCommand(summaryCmd)
}

// --- Helpers ---

// openReader opens the committed generation of the configured output dir.
func openReader(cfg *config.Config) (*sqlcache.Reader, error) {
	r, err := sqlcache.Open(cfg.Output)
	if errors.Is(err, sqlcache.ErrNoGeneration) {
		return nil, fmt.Errorf("no committed generation in %s (run 'sqlcache build' first)", cfg.Output)
	}
	return r, err
}

func role() (source.Role, error) {
	if flagRole == "" {
		return "", nil
	}
	for _, r := range source.Roles {
		if string(r) == flagRole {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid role %q: must be schema, query, models or query_impl", flagRole)
}

// withReader runs fn against an open reader and reports its result or error
// under command.
func withReader(command string, fn func(r *sqlcache.Reader) (CLIResult, error)) error {
	cfg, err := loadSettings()
	if err != nil {
		return outputError(command, err)
	}
	r, err := openReader(cfg)
	if err != nil {
		return outputError(command, err)
	}
	defer r.Close()
	result, err := fn(r)
	if err != nil {
		return outputError(command, err)
	}
	result.Command = command
	return outputResult(result)
}

// --- Commands ---

var entityCmd = &cobra.Command{
	Use:   "entity <name>",
	Short: "Find entities by name across all roles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReader("entity", func(r *sqlcache.Reader) (CLIResult, error) {
			matches, err := r.Entity(args[0])
			if err != nil {
				return CLIResult{}, err
			}
			if ro, err := role(); err != nil {
				return CLIResult{}, err
			} else if ro != "" {
				filtered := matches[:0]
				for _, m := range matches {
					if m.Role == ro {
						filtered = append(filtered, m)
					}
				}
				matches = filtered
			}
			total := len(matches)
			return CLIResult{Results: matches, TotalCount: &total}, nil
		})
	},
}

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List committed entities in line order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReader("entities", func(r *sqlcache.Reader) (CLIResult, error) {
			ro, err := role()
			if err != nil {
				return CLIResult{}, err
			}
			ents, err := r.Entities(ro, flagKind)
			if err != nil {
				return CLIResult{}, err
			}
			if ents == nil {
				ents = []sqlcache.EntityMatch{}
			}
			total := len(ents)
			return CLIResult{Results: ents, TotalCount: &total}, nil
		})
	},
}

var bundleCmd = &cobra.Command{
	Use:   "bundle <query>",
	Short: "Print the cache bundle of a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReader("bundle", func(r *sqlcache.Reader) (CLIResult, error) {
			b, err := r.Bundle(args[0])
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: b}, nil
		})
	},
}

var bundlesCmd = &cobra.Command{
	Use:   "bundles",
	Short: "List committed bundles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReader("bundles", func(r *sqlcache.Reader) (CLIResult, error) {
			infos, err := r.Bundles()
			if err != nil {
				return CLIResult{}, err
			}
			total := len(infos)
			return CLIResult{Results: infos, TotalCount: &total}, nil
		})
	},
}

var dependentsCmd = &cobra.Command{
	Use:   "dependents [name]",
	Short: "List bundles that inline an entity, or any entity of --role",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReader("dependents", func(r *sqlcache.Reader) (CLIResult, error) {
			ro, err := role()
			if err != nil {
				return CLIResult{}, err
			}
			var name string
			if len(args) == 1 {
				name = args[0]
			} else if ro == "" {
				return CLIResult{}, fmt.Errorf("dependents without a name requires --role")
			}
			deps, err := r.Dependents(ro, name)
			if err != nil {
				return CLIResult{}, err
			}
			if deps == nil {
				deps = []string{}
			}
			total := len(deps)
			return CLIResult{Results: deps, TotalCount: &total}, nil
		})
	},
}

var snippetCmd = &cobra.Command{
	Use:   "snippet <name>",
	Short: "Print the committed text of an entity (requires --role)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReader("snippet", func(r *sqlcache.Reader) (CLIResult, error) {
			ro, err := role()
			if err != nil {
				return CLIResult{}, err
			}
			if ro == "" {
				return CLIResult{}, fmt.Errorf("snippet requires --role")
			}
			text, err := r.Snippet(ro, args[0])
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: CLISnippet{Role: string(ro), Name: args[0], Text: text}}, nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search entities by glob pattern ('*' matches anything)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReader("search", func(r *sqlcache.Reader) (CLIResult, error) {
			ro, err := role()
			if err != nil {
				return CLIResult{}, err
			}
			page, err := r.Search(args[0], flagKinds, ro, sqlcache.Pagination{Limit: flagLimit, Offset: flagOffset})
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: page.Items, TotalCount: &page.TotalCount}, nil
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize the committed generation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReader("summary", func(r *sqlcache.Reader) (CLIResult, error) {
			sum, err := r.Summary()
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: *sum}, nil
		})
	},
}
