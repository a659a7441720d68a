package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/dictate-go/internal/service"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Show the category of a text without saving anything",
	Long: `Classify a text into one category and show the collection it would be
saved to.

Examples:
  dictate classify "Made the lasagna again tonight"
  echo "Lorna beat me 3-4 at Wordle" | dictate classify -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	text, err := inputText(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := getApp(ctx)
	if err != nil {
		return err
	}

	cat, err := a.Gateway.Classify(ctx, text)
	if err != nil {
		return err
	}
	coll, err := a.Registry.CollectionFor(cat)
	if err != nil {
		return err
	}

	mode := "create"
	if service.IsUpsert(cat) {
		mode = "upsert"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", cat, coll.Name, mode)
	return nil
}
