package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/dictate-go/internal/matcher"
	"github.com/raphaelgruber/dictate-go/internal/models"
)

var (
	resolveKind       string
	resolveCollection string
	resolveCreate     bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Find the workspace record a spoken name refers to",
	Long: `Resolve a name against a collection using exact, singular/plural, fuzzy,
word-overlap and semantic matching, and show which tier matched.

Examples:
  dictate resolve "Jess" --kind person
  dictate resolve "cherry tomato" --collection ingredients
  dictate resolve "Stripe" --kind company --create`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveKind, "kind", "k", string(models.KindPerson), "entity kind (person, company, class, ingredient, recipe, restaurant)")
	resolveCmd.Flags().StringVar(&resolveCollection, "collection", "", "collection to search (overrides --kind)")
	resolveCmd.Flags().BoolVar(&resolveCreate, "create", false, "create a record when nothing matches")
}

func runResolve(cmd *cobra.Command, args []string) error {
	name, err := inputText(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := getApp(ctx)
	if err != nil {
		return err
	}

	kind := models.EntityKind(resolveKind)
	collection := resolveCollection
	if collection == "" {
		collection, err = a.Registry.CollectionForKind(kind)
		if err != nil {
			return err
		}
	} else if _, ok := a.Registry.Collection(collection); !ok {
		return fmt.Errorf("unknown collection %q", collection)
	}

	res, entries, err := a.Matcher.Resolve(ctx, nil, models.EntityMention{Name: name, Kind: kind}, collection,
		matcher.ResolveOptions{AllowCreate: resolveCreate})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	p := newPrinter(out)
	p.actionLog(entries)
	if !res.Resolved() {
		fmt.Fprintf(out, "No match for '%s' in %s\n", name, collection)
		return nil
	}
	fmt.Fprintf(out, "%s -> %s [%s]\n", name, res.Title, res.Tier)
	if verbose {
		fmt.Fprintf(out, "  ID:  %s\n", res.RecordID)
		if res.URL != "" {
			fmt.Fprintf(out, "  URL: %s\n", res.URL)
		}
	}
	return nil
}
