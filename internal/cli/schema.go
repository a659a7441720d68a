package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/dictate-go/internal/app"
	"github.com/raphaelgruber/dictate-go/internal/schema"
)

var schemaCounts bool

var schemaCmd = &cobra.Command{
	Use:   "schema [collection]",
	Short: "List workspace collections and their fields",
	Long: `List the collections records are saved to, with their fields and
relations. The schema comes from DICTATE_SCHEMA_FILE or the built-in default.

Examples:
  dictate schema
  dictate schema recipes
  dictate schema --counts   # record counts (surreal store only)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaCounts, "counts", false, "show record counts per collection")
}

func runSchema(cmd *cobra.Command, args []string) error {
	reg, err := app.LoadRegistry(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		c, ok := reg.Collection(args[0])
		if !ok {
			return fmt.Errorf("unknown collection %q", args[0])
		}
		printCollection(newPrinter(out), c)
		return nil
	}

	counts := map[string]int{}
	if schemaCounts {
		ctx := context.Background()
		a, err := getApp(ctx)
		if err != nil {
			return err
		}
		if a.Surreal == nil {
			return fmt.Errorf("--counts needs DICTATE_STORE=surreal")
		}
		cc, err := a.Surreal.CountByCollection(ctx)
		if err != nil {
			return err
		}
		for _, c := range cc {
			counts[c.Collection] = c.Count
		}
	}

	header := []string{"KEY", "NAME", "TITLE", "FIELDS", "RELATIONS"}
	if schemaCounts {
		header = append(header, "RECORDS")
	}
	var rows [][]string
	for _, c := range reg.Collections() {
		rels := make([]string, len(c.Relations))
		for i, r := range c.Relations {
			rels[i] = r.Name + "->" + r.Target
		}
		row := []string{c.Key, c.Name, c.TitleField(), fmt.Sprint(len(c.Fields)), strings.Join(rels, ", ")}
		if schemaCounts {
			row = append(row, fmt.Sprint(counts[c.Key]))
		}
		rows = append(rows, row)
	}
	newPrinter(out).table(header, rows)
	return nil
}

func printCollection(p *printer, c *schema.Collection) {
	fmt.Fprintf(p.out, "%s (%s)\n", c.Name, c.Key)
	fmt.Fprintf(p.out, "  Database env: %s\n", c.DatabaseEnv)

	var rows [][]string
	for _, f := range c.Fields {
		merge := string(f.Merge)
		if merge == "" {
			merge = string(schema.MergeReplace)
		}
		rows = append(rows, []string{f.Name, string(f.Type), merge, strings.Join(f.Options, "|")})
	}
	for _, r := range c.Relations {
		merge := string(r.Merge)
		if merge == "" {
			merge = string(schema.MergeUnion)
		}
		rows = append(rows, []string{r.Name, "relation:" + r.Target, merge, ""})
	}
	fmt.Fprintln(p.out)
	p.table([]string{"FIELD", "TYPE", "MERGE", "OPTIONS"}, rows)
}
