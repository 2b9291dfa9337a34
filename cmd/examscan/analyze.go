package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/examscan/internal/analyze"
	"github.com/jackzampolin/examscan/internal/api"
	"github.com/jackzampolin/examscan/internal/exam"
)

var (
	analyzeEnrich  bool
	analyzeSave    bool
	analyzeDisplay bool
	analyzeMIME    string
	enrichSave     bool
)

// analyzeReport is the output of `examscan analyze`.
type analyzeReport struct {
	Paper    *analyze.Outcome `json:"paper" yaml:"paper"`
	Enriched *analyze.Outcome `json:"enriched,omitempty" yaml:"enriched,omitempty"`
	Summary  *exam.Summary    `json:"summary,omitempty" yaml:"summary,omitempty"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Read an exam paper image with the vision model",
	Long: `Send an exam paper image to the configured vision model and extract
sections, questions and handwritten notes from its reply.

With --enrich, the extracted document is sent to the text model to get an
answer and explanation for every question.

Examples:
  examscan analyze page1.jpg
  examscan analyze --enrich --save page1.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		an, closeLog, err := a.analyzer()
		if err != nil {
			return err
		}
		defer closeLog()

		image, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		mime := analyzeMIME
		if mime == "" {
			mime = detectImageMIME(image)
		}

		ctx := cmd.Context()
		report := analyzeReport{}
		report.Paper, err = an.Paper(ctx, image, mime)
		if err != nil {
			return err
		}

		final := report.Paper
		if analyzeEnrich && report.Paper.Result.OK() {
			report.Enriched, err = an.Enrich(ctx, report.Paper.Result.Document)
			if err != nil {
				return err
			}
			if report.Enriched.Result.OK() {
				final = report.Enriched
			}
		}
		if final.Result.OK() {
			sum := exam.Summarize(final.Result.Document)
			report.Summary = &sum
		}

		if analyzeSave {
			path, err := a.home.SaveResult(report, "")
			if err != nil {
				return err
			}
			a.logger.Info("saved result", "path", path)
		}

		out := cmd.OutOrStdout()
		if analyzeDisplay {
			if err := api.Text(out, displayResult(final.Result)); err != nil {
				return err
			}
		} else if err := api.OutputTo(out, api.GetOutputFormat(), report); err != nil {
			return err
		}
		if !final.Result.OK() {
			return errExtractionFailed
		}
		return nil
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich <document.json>",
	Short: "Answer every question of an extracted document",
	Long: `Send a stored document to the text model and extract the reply, which
adds an answer and explanation to every question.

The file may hold a bare document ({"sections": [...]}), a saved extract
result, or a saved analyze report.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
		doc, err := loadDocument(data)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		an, closeLog, err := a.analyzer()
		if err != nil {
			return err
		}
		defer closeLog()

		outcome, err := an.Enrich(cmd.Context(), doc)
		if err != nil {
			return err
		}
		if enrichSave {
			path, err := a.home.SaveResult(outcome, "")
			if err != nil {
				return err
			}
			a.logger.Info("saved result", "path", path)
		}
		if err := api.OutputTo(cmd.OutOrStdout(), api.GetOutputFormat(), outcome); err != nil {
			return err
		}
		if !outcome.Result.OK() {
			return errExtractionFailed
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeEnrich, "enrich", false, "answer every extracted question with the text model")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "save the report to the results directory")
	analyzeCmd.Flags().BoolVar(&analyzeDisplay, "display", false, "print a human-readable overview instead of the report")
	analyzeCmd.Flags().StringVar(&analyzeMIME, "mime", "", "image MIME type (default: detected)")
	enrichCmd.Flags().BoolVar(&enrichSave, "save", false, "save the outcome to the results directory")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(enrichCmd)
}

// detectImageMIME sniffs the image type, falling back to JPEG.
func detectImageMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return "image/jpeg"
}

// loadDocument accepts a bare document, a saved extract result
// ({"document": ...}) or a saved analyze report/outcome.
func loadDocument(data []byte) (*exam.Document, error) {
	var probe struct {
		Sections json.RawMessage `json:"sections"`
		Document *exam.Document  `json:"document"`
		Result   *struct {
			Document *exam.Document `json:"document"`
		} `json:"result"`
		Paper *struct {
			Result struct {
				Document *exam.Document `json:"document"`
			} `json:"result"`
		} `json:"paper"`
		Enriched *struct {
			Result struct {
				Document *exam.Document `json:"document"`
			} `json:"result"`
		} `json:"enriched"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	var doc *exam.Document
	switch {
	case probe.Sections != nil:
		doc = &exam.Document{}
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
	case probe.Document != nil:
		doc = probe.Document
	case probe.Result != nil && probe.Result.Document != nil:
		doc = probe.Result.Document
	case probe.Enriched != nil && probe.Enriched.Result.Document != nil:
		doc = probe.Enriched.Result.Document
	case probe.Paper != nil && probe.Paper.Result.Document != nil:
		doc = probe.Paper.Result.Document
	default:
		return nil, fmt.Errorf("no document found")
	}
	return doc.Normalize(), nil
}
