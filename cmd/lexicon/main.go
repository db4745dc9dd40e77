// Command lexicon queries the Paiwan dictionary sources from the shell, using
// the same configuration and manifest as the gateway.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"paiwantalk/internal/app"
	"paiwantalk/internal/lexicon"
)

func main() {
	if err := newRootCmd(app.BuildLexicon).Execute(); err != nil {
		os.Exit(1)
	}
}

type loader func() (app.Deps, error)

func newRootCmd(load loader) *cobra.Command {
	root := &cobra.Command{
		Use:           "lexicon",
		Short:         "Look up Paiwan words across the configured dictionary sources",
		SilenceUsage: true,
	}
	root.AddCommand(newLookupCmd(load), newSourcesCmd(load))
	return root
}

type lookupResult struct {
	Text    string   `json:"text"`
	Source  string   `json:"source"`
	Glosses []string `json:"glosses"`
}

func newLookupCmd(load loader) *cobra.Command {
	var (
		source string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "lookup <text>",
		Short:   "Resolve a word against one source or all of them",
		Example: "  lexicon lookup vavayan\n  lexicon lookup vavayan --source qianzi",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := load()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			label, glosses, err := deps.Resolver.Resolve(text, source)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetEscapeHTML(false)
				return enc.Encode(lookupResult{Text: text, Source: label, Glosses: glosses})
			}
			if len(glosses) == 0 {
				fmt.Fprintf(out, "%s: no match (%s)\n", text, label)
				return nil
			}
			fmt.Fprintf(out, "%s [%s]\n", text, label)
			for _, g := range glosses {
				fmt.Fprintf(out, "  %s\n", g)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", lexicon.SelectorAll, "source key, or \"all\"")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newSourcesCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources by priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := load()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tWEIGHT\tENTRIES")
			for _, src := range deps.Lexicon.Sources() {
				fmt.Fprintf(tw, "%s\t%.2f\t%d\n", src.Key(), src.Weight(), src.Len())
			}
			return tw.Flush()
		},
	}
}
