package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/dictate-go/internal/models"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [recording-id]",
	Short: "List recent captures or inspect one",
	Long: `List recent captures with their category and outcome, or show the
records one capture created and updated. Needs DICTATE_AUDIT=true.

Examples:
  dictate history            # last 20 captures
  dictate history -n 50
  dictate history k3j2h1     # records touched by one capture`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of captures to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := getApp(ctx)
	if err != nil {
		return err
	}
	if a.History == nil {
		return errors.New("history is not recorded: set DICTATE_AUDIT=true")
	}

	p := newPrinter(cmd.OutOrStdout())
	if len(args) == 1 {
		activities, err := a.History.Activities(ctx, args[0])
		if err != nil {
			return fmt.Errorf("list activities: %w", err)
		}
		printActivities(p, activities)
		return nil
	}

	recordings, err := a.History.Recent(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("list recordings: %w", err)
	}
	printRecordings(p, recordings)
	return nil
}

func printRecordings(p *printer, recordings []models.Recording) {
	if len(recordings) == 0 {
		fmt.Fprintln(p.out, "No captures found")
		return
	}
	rows := make([][]string, 0, len(recordings))
	for _, r := range recordings {
		id := ""
		if r.ID != nil {
			id = fmt.Sprint(r.ID.ID)
		}
		text := r.Summary
		if r.Status == models.RecordingFailed && r.Error != nil {
			text = *r.Error
		}
		if text == "" {
			text = truncate(r.Body, 50)
		}
		rows = append(rows, []string{
			id,
			r.CreatedAt.Local().Format(time.DateTime),
			r.Category,
			r.Status,
			fmt.Sprint(r.ActivitiesCount),
			text,
		})
	}
	p.table([]string{"ID", "CREATED", "CATEGORY", "STATUS", "RECORDS", "SUMMARY"}, rows)
}

func printActivities(p *printer, activities []models.Activity) {
	if len(activities) == 0 {
		fmt.Fprintln(p.out, "No records touched")
		return
	}
	for _, act := range activities {
		mark, st := p.marker(models.ActionKind(act.ActionType))
		fmt.Fprintln(p.out, st.Render(mark+" "+act.Action))
		if act.PageURL != "" {
			fmt.Fprintln(p.out, p.style(p.theme.Hint, false).Render("  "+act.PageURL))
		}
	}
}
