// Package roundtrip runs the full verification pipeline over one input:
// import, spanner resolution, semantic validation, export, re-import,
// and structural diff. The outcome is a report suitable for archiving
// alongside the input.
package roundtrip

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/FocuswithJustin/Partitura/core/cas"
	"github.com/FocuswithJustin/Partitura/core/diff"
	"github.com/FocuswithJustin/Partitura/core/errors"
	"github.com/FocuswithJustin/Partitura/core/score"
	"github.com/FocuswithJustin/Partitura/core/validate"
	"github.com/FocuswithJustin/Partitura/internal/formats"
	"github.com/FocuswithJustin/Partitura/internal/logging"
)

// Version is the report format version.
const Version = "1.0.0"

// Status values for reports.
const (
	StatusPass = "pass"
	StatusFail = "fail"
)

// Check names in execution order.
const (
	CheckDetect   = "detect"
	CheckImport   = "import"
	CheckValidate = "validate"
	CheckExport   = "export"
	CheckReimport = "reimport"
	CheckDiff     = "diff"
)

// CheckResult is the result of a single pipeline check.
type CheckResult struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail,omitempty"`
}

// Report is the output of a round-trip run.
type Report struct {
	ReportVersion string        `json:"report_version"`
	CreatedAt     string        `json:"created_at"`
	Source        string        `json:"source"`
	Format        string        `json:"format"`
	Fingerprint   string        `json:"fingerprint,omitempty"`
	Parts         int           `json:"parts"`
	Notes         int           `json:"notes"`
	Violations    int           `json:"violations"`
	Differences   int           `json:"differences"`
	Results       []CheckResult `json:"results"`
	Status        string        `json:"status"`
}

// ToJSON serializes the report to JSON.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Hash returns the content hash of the report.
func (r *Report) Hash() string {
	data, _ := json.Marshal(r)
	return cas.Hash(data)
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	return r.Status == StatusPass
}

// Text renders the report for terminal output.
func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "roundtrip %s (%s): %s\n", r.Source, r.Format, r.Status)
	for _, res := range r.Results {
		mark := "ok"
		if !res.Pass {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "  %-8s %s", res.Name, mark)
		if res.Detail != "" {
			fmt.Fprintf(&b, " (%s)", res.Detail)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Options configures a round-trip run.
type Options struct {
	// Format forces a specific format handler. Empty means detect.
	Format string

	// GridDivisor overrides the quantization grid for tick-based
	// formats. Zero uses the default.
	GridDivisor int
}

// Run executes the pipeline over one input. Pipeline-breaking failures
// (unreadable input, export errors) return an error; semantic findings
// (violations, differences) land in the report as failed checks.
func Run(source string, data []byte, opts Options) (*Report, *score.Score, error) {
	report := &Report{
		ReportVersion: Version,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Source:        source,
		Status:        StatusPass,
	}

	handler, err := pickHandler(data, opts, report)
	if err != nil {
		return nil, nil, err
	}
	report.Format = handler.Name

	importOpts := formats.ImportOptions{GridDivisor: opts.GridDivisor}
	first, err := handler.Import(data, importOpts)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "import %s", source)
	}
	report.Parts = len(first.Parts)
	report.Notes = first.NoteCount()
	report.add(CheckImport, true,
		fmt.Sprintf("%d parts, %d notes", report.Parts, report.Notes))

	fingerprint, err := score.Fingerprint(first)
	if err != nil {
		return nil, nil, errors.Wrap(err, "fingerprint")
	}
	report.Fingerprint = fingerprint

	result := validate.Validate(first)
	report.Violations = len(result.Violations)
	logging.ValidationSummary(report.Violations)
	report.add(CheckValidate, result.OK(),
		fmt.Sprintf("%d violations", report.Violations))

	out, err := handler.Export(first)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "export %s", source)
	}
	report.add(CheckExport, true, fmt.Sprintf("%d bytes", len(out)))

	second, err := handler.Import(out, importOpts)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "re-import %s", source)
	}
	report.add(CheckReimport, true, "")

	diffResult := diff.Compare(first, second)
	report.Differences = len(diffResult.Differences)
	report.add(CheckDiff, diffResult.Equal(),
		fmt.Sprintf("%d differences", report.Differences))

	logging.RoundTrip(handler.Name, report.Differences, report.Passed())
	return report, first, nil
}

// pickHandler resolves the format handler, recording the detect check.
func pickHandler(data []byte, opts Options, report *Report) (*formats.Handler, error) {
	if opts.Format != "" {
		handler, err := formats.Get(opts.Format)
		if err != nil {
			return nil, err
		}
		report.add(CheckDetect, true, "forced "+opts.Format)
		return handler, nil
	}

	handler, detected := formats.Detect(data)
	if handler == nil {
		report.add(CheckDetect, false, detected.Reason)
		return nil, errors.NewUnsupported("input format", detected.Reason)
	}
	report.add(CheckDetect, true, detected.Reason)
	return handler, nil
}

func (r *Report) add(name string, pass bool, detail string) {
	r.Results = append(r.Results, CheckResult{Name: name, Pass: pass, Detail: detail})
	if !pass {
		r.Status = StatusFail
	}
}
