package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/examscan/internal/api"
	"github.com/jackzampolin/examscan/internal/exam"
	"github.com/jackzampolin/examscan/internal/extract"
)

// errExtractionFailed makes the process exit non-zero after a failure
// result has been printed.
var errExtractionFailed = errors.New("extraction failed")

var (
	extractDisplay bool
	extractSave    bool
	extractName    string
)

var extractCmd = &cobra.Command{
	Use:   "extract [file|-]",
	Short: "Recover a structured document from a saved model response",
	Long: `Run the extraction pipeline on a model response read from a file, or
from stdin when the file is "-" or omitted.

The result is one of:
  success  the response parsed as a document (possibly after repair)
  partial  nothing parsed, but questions/notes were salvaged from the text
  failure  no usable structure; the envelope carries a bounded preview

Examples:
  examscan extract response.txt
  examscan extract --display response.txt
  cat response.txt | examscan extract --save -o yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		data, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		result := a.extractor().Extract(string(data))
		if extractSave {
			path, err := a.home.SaveResult(result, extractName)
			if err != nil {
				return err
			}
			a.logger.Info("saved result", "path", path)
		}

		out := cmd.OutOrStdout()
		if extractDisplay {
			err = api.Text(out, displayResult(result))
		} else {
			err = api.OutputTo(out, api.GetOutputFormat(), result)
		}
		if err != nil {
			return err
		}
		if result.Kind == extract.KindFailure {
			return errExtractionFailed
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractDisplay, "display", false, "print a human-readable overview instead of the result")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "save the result to the results directory")
	extractCmd.Flags().StringVar(&extractName, "name", "", "result file name for --save (default: generated)")

	rootCmd.AddCommand(extractCmd)
}

// readInput reads the named file, or r when no file or "-" is given.
func readInput(r io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return data, nil
}

// displayResult renders a result for people: the overview and every
// question for a document, the envelope for a failure.
func displayResult(result extract.Result) string {
	if !result.OK() {
		f := result.Failure
		if f == nil {
			return "Extraction failed"
		}
		s := fmt.Sprintf("Extraction failed: %s\n\n%s", f.Error(), f.Preview)
		if f.Truncated {
			s += fmt.Sprintf("\n\n(response truncated from %d bytes)", f.SourceLength)
		}
		return s
	}

	s := exam.FormatForDisplay(result.Document)
	if caveat := result.Caveat(); caveat != "" {
		s = caveat + "\n\n" + s
	}
	for _, sec := range result.Document.Sections {
		for _, q := range sec.Questions {
			s += "\n\n" + exam.FormatQuestion(q)
		}
	}
	return s
}
