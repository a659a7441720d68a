package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/dictate-go/internal/models"
	"github.com/raphaelgruber/dictate-go/internal/service"
)

var (
	captureNoCreate    bool
	captureJSON        bool
	captureStats       bool
	captureCategory    string
	captureFile        string
	captureConcurrency int
)

// errRunFailed makes the process exit non-zero after the result was printed.
var errRunFailed = errors.New("capture failed")

var captureCmd = &cobra.Command{
	Use:   "capture [text]",
	Short: "Classify dictated text and save it to the workspace",
	Long: `Classify dictated text, resolve the names it mentions and save it.

Text is taken from the arguments, or from stdin when the only argument is "-".
With --file every non-empty line of the file is captured as its own dictation.

Examples:
  dictate capture "I need to send a follow-up email to Jessica by Friday"
  dictate capture "Bought tomatoes, parsley and sumac" --no-create
  pbpaste | dictate capture -
  dictate capture --file inbox.txt --concurrency 2 --json`,
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().BoolVar(&captureNoCreate, "no-create", false, "leave unknown names unresolved instead of creating records")
	captureCmd.Flags().BoolVar(&captureJSON, "json", false, "print the result as JSON")
	captureCmd.Flags().BoolVar(&captureStats, "stats", false, "print model and store timings after the run")
	captureCmd.Flags().StringVarP(&captureCategory, "category", "c", "", "skip classification and use this category")
	captureCmd.Flags().StringVarP(&captureFile, "file", "f", "", "capture every line of a file")
	captureCmd.Flags().IntVar(&captureConcurrency, "concurrency", 0, "parallel runs for --file (default DICTATE_CONCURRENCY)")
}

func runCapture(cmd *cobra.Command, args []string) error {
	opts := service.RunOptions{NoCreate: captureNoCreate}
	if captureCategory != "" {
		cat, err := models.ParseCategory(captureCategory)
		if err != nil {
			return err
		}
		opts.Category = cat
	}

	var texts []string
	if captureFile != "" {
		f, err := os.Open(captureFile)
		if err != nil {
			return fmt.Errorf("open %s: %w", captureFile, err)
		}
		defer f.Close()
		texts, err = readLines(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", captureFile, err)
		}
		if len(texts) == 0 {
			return fmt.Errorf("%s contains no dictations", captureFile)
		}
	} else {
		text, err := inputText(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		texts = []string{text}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := getApp(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	p := newPrinter(out)
	failed := false

	if captureFile == "" {
		res := a.Pipeline.Run(ctx, texts[0], opts)
		failed = !res.Success
		if captureJSON {
			if err := writeJSON(out, res); err != nil {
				return err
			}
		} else {
			p.result(res)
		}
	} else {
		n := captureConcurrency
		if n <= 0 {
			n = cfg.Concurrency
		}
		batch := a.Pipeline.RunBatch(ctx, texts, n, opts)
		failed = batch.Failed > 0
		if captureJSON {
			if err := writeJSON(out, batch); err != nil {
				return err
			}
		} else {
			for i, res := range batch.Results {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(batch.Results), truncate(res.Input, 60))
				p.result(res)
			}
			fmt.Fprintf(out, "\n%d captured, %d failed\n", batch.Succeeded, batch.Failed)
		}
	}

	if captureStats && !captureJSON {
		fmt.Fprintln(out)
		p.stats(a.Metrics.Snapshot())
	}
	if failed {
		return errRunFailed
	}
	return nil
}

// inputText joins args into one dictation, reading stdin for "-".
func inputText(args []string, stdin io.Reader) (string, error) {
	var text string
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	} else {
		text = strings.Join(args, " ")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("no text to capture")
	}
	return text, nil
}

// readLines returns the non-empty lines of r, trimmed.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
