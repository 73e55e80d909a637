// Command partitura converts, validates, and round-trip checks music
// score files, and archives the evidence of each run.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/FocuswithJustin/Partitura/core/capsule"
	"github.com/FocuswithJustin/Partitura/core/score"
	"github.com/FocuswithJustin/Partitura/core/validate"
	"github.com/FocuswithJustin/Partitura/internal/corpus"
	"github.com/FocuswithJustin/Partitura/internal/formats"
	"github.com/FocuswithJustin/Partitura/internal/logging"
	"github.com/FocuswithJustin/Partitura/internal/roundtrip"

	// Register the built-in format handlers.
	_ "github.com/FocuswithJustin/Partitura/internal/formats/musicxml"
	_ "github.com/FocuswithJustin/Partitura/internal/formats/smf"
)

const version = "0.1.0"

// CLI defines the command-line interface for partitura.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" help:"Log output format"`

	Convert   ConvertCmd   `cmd:"" help:"Convert a score file to another format"`
	Validate  ValidateCmd  `cmd:"" help:"Validate a score file's semantic invariants"`
	Roundtrip RoundtripCmd `cmd:"" help:"Run the import/export/diff round-trip check"`
	Inspect   InspectCmd   `cmd:"" help:"Print a structural summary of a score file"`
	Formats   FormatsCmd   `cmd:"" help:"List registered format handlers"`
	Capsule   CapsuleGroup `cmd:"" help:"Evidence capsule operations (pack, verify)"`
	Corpus    CorpusGroup  `cmd:"" help:"Regression corpus operations (record, list)"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// CapsuleGroup contains capsule lifecycle operations.
type CapsuleGroup struct {
	Pack   CapsulePackCmd   `cmd:"" help:"Pack a score run into an evidence capsule"`
	Verify CapsuleVerifyCmd `cmd:"" help:"Verify a capsule archive's integrity"`
}

// CorpusGroup contains regression corpus operations.
type CorpusGroup struct {
	Record CorpusRecordCmd `cmd:"" help:"Record a round-trip run in the corpus database"`
	List   CorpusListCmd   `cmd:"" help:"List recorded runs"`
}

// importFile reads and imports one score file, detecting the format
// unless one is forced.
func importFile(path, format string, gridDivisor int) (*score.Score, *formats.Handler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var handler *formats.Handler
	if format != "" {
		handler, err = formats.Get(format)
		if err != nil {
			return nil, nil, err
		}
	} else {
		h, res := formats.Detect(data)
		if h == nil {
			return nil, nil, fmt.Errorf("cannot detect format of %s: %s", path, res.Reason)
		}
		handler = h
	}

	start := time.Now()
	s, err := handler.Import(data, formats.ImportOptions{GridDivisor: gridDivisor})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to import %s: %w", path, err)
	}
	logging.FormatImport(handler.Name, path, len(s.Parts), s.NoteCount(), time.Since(start))
	return s, handler, nil
}

// ConvertCmd converts a score file to another format.
type ConvertCmd struct {
	Input       string `arg:"" help:"Input score file" type:"existingfile"`
	Out         string `required:"" help:"Output file path" type:"path"`
	From        string `help:"Force the input format instead of detecting it"`
	To          string `help:"Output format (default: by output extension)"`
	GridDivisor int    `name:"grid-divisor" help:"Quantization grid points per quarter for tick formats"`
}

func (c *ConvertCmd) Run() error {
	s, _, err := importFile(c.Input, c.From, c.GridDivisor)
	if err != nil {
		return err
	}

	var target *formats.Handler
	if c.To != "" {
		target, err = formats.Get(c.To)
	} else {
		target, err = formats.ByExtension(filepath.Ext(c.Out))
	}
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := target.Export(s)
	if err != nil {
		return fmt.Errorf("failed to export as %s: %w", target.Name, err)
	}
	logging.FormatExport(target.Name, c.Out, len(out), time.Since(start))

	if err := os.WriteFile(c.Out, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.Out, err)
	}
	fmt.Printf("Converted %s -> %s (%s, %d bytes)\n", c.Input, c.Out, target.Name, len(out))
	return nil
}

// ValidateCmd validates a score file's semantic invariants.
type ValidateCmd struct {
	Input       string `arg:"" help:"Input score file" type:"existingfile"`
	From        string `help:"Force the input format instead of detecting it"`
	GridDivisor int    `name:"grid-divisor" help:"Quantization grid points per quarter for tick formats"`
}

func (c *ValidateCmd) Run() error {
	s, _, err := importFile(c.Input, c.From, c.GridDivisor)
	if err != nil {
		return err
	}

	result := validate.Validate(s)
	fmt.Println(result.Report())
	if !result.OK() {
		return fmt.Errorf("%d violation(s)", len(result.Violations))
	}
	return nil
}

// RoundtripCmd runs the full round-trip pipeline over a score file.
type RoundtripCmd struct {
	Input       string `arg:"" help:"Input score file" type:"existingfile"`
	From        string `help:"Force the input format instead of detecting it"`
	JSON        bool   `help:"Emit the report as JSON"`
	Capsule     string `help:"Pack the run into an evidence capsule at this path" type:"path"`
	Corpus      string `help:"Record the run in this corpus database" type:"path"`
	GridDivisor int    `name:"grid-divisor" help:"Quantization grid points per quarter for tick formats"`
}

func (c *RoundtripCmd) Run() error {
	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.Input, err)
	}

	ctx := logging.WithRunID(context.Background(), uuid.NewString())
	logging.InfoContext(ctx, "round_trip_start", "source", c.Input)

	report, s, err := roundtrip.Run(filepath.Base(c.Input), data, roundtrip.Options{
		Format:      c.From,
		GridDivisor: c.GridDivisor,
	})
	if err != nil {
		return err
	}

	if c.JSON {
		out, err := report.ToJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		fmt.Print(report.Text())
	}

	if c.Capsule != "" {
		if err := packRun(c.Capsule, c.Input, data, s, report); err != nil {
			return fmt.Errorf("failed to pack capsule: %w", err)
		}
		fmt.Printf("Evidence capsule written to %s\n", c.Capsule)
	}

	if c.Corpus != "" {
		if err := recordRun(ctx, c.Corpus, c.Input, report); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		fmt.Printf("Run recorded in %s\n", c.Corpus)
	}

	if !report.Passed() {
		return fmt.Errorf("round trip failed")
	}
	return nil
}

// packRun builds an evidence capsule holding the source bytes, the
// reconstructed graph, and the round-trip report.
func packRun(archivePath, inputPath string, data []byte, s *score.Score, report *roundtrip.Report) error {
	tempDir, err := os.MkdirTemp("", "partitura-capsule-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	arc, err := capsule.New(tempDir)
	if err != nil {
		return err
	}
	source, err := arc.IngestBytes(filepath.Base(inputPath), inputPath, report.Format, data)
	if err != nil {
		return err
	}
	if _, err := arc.StoreGraph(s, source.ID); err != nil {
		return err
	}

	reportJSON, err := report.ToJSON()
	if err != nil {
		return err
	}
	if _, err := arc.AddReport("roundtrip-"+source.ID, capsule.ReportKindRoundTrip,
		source.ID, report.Status, reportJSON); err != nil {
		return err
	}
	if err := arc.SaveManifest(); err != nil {
		return err
	}
	return arc.Pack(archivePath)
}

// recordRun appends the run to the corpus database.
func recordRun(ctx context.Context, dbPath, inputPath string, report *roundtrip.Report) error {
	store, err := corpus.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Record(ctx, &corpus.Run{
		Source:      filepath.Base(inputPath),
		Format:      report.Format,
		Fingerprint: report.Fingerprint,
		Parts:       report.Parts,
		Notes:       report.Notes,
		Violations:  report.Violations,
		Differences: report.Differences,
		Pass:        report.Passed(),
	})
}

// InspectCmd prints a structural summary of a score file.
type InspectCmd struct {
	Input       string `arg:"" help:"Input score file" type:"existingfile"`
	From        string `help:"Force the input format instead of detecting it"`
	GridDivisor int    `name:"grid-divisor" help:"Quantization grid points per quarter for tick formats"`
}

func (c *InspectCmd) Run() error {
	s, handler, err := importFile(c.Input, c.From, c.GridDivisor)
	if err != nil {
		return err
	}

	fingerprint, err := score.Fingerprint(s)
	if err != nil {
		return err
	}

	fmt.Printf("File: %s (%s)\n", c.Input, handler.Name)
	if s.Title != "" {
		fmt.Printf("  Title: %s\n", s.Title)
	}
	if s.Composer != "" {
		fmt.Printf("  Composer: %s\n", s.Composer)
	}
	fmt.Printf("  Fingerprint: %s\n", fingerprint)

	var pitched, rests, chords, grace, artics, ornaments, dynamics int
	for _, p := range s.Parts {
		fmt.Printf("  Part %s (%s): %d measures, %d notes\n",
			p.ID, p.Name, len(p.Measures), len(p.Notes))
		fmt.Printf("    Spanners: %d ties, %d slurs, %d tuplets, %d beam groups\n",
			len(p.Ties), len(p.Slurs), len(p.Tuplets), len(p.Beams))
		for _, n := range p.Notes {
			switch {
			case n.IsRest():
				rests++
			default:
				pitched++
			}
			if n.ChordMember {
				chords++
			}
			if n.Grace {
				grace++
			}
			artics += len(n.Articulations)
			ornaments += len(n.Ornaments)
		}
		for _, m := range p.Measures {
			for _, d := range m.Directions {
				if d.Kind == "dynamics" {
					dynamics++
				}
			}
		}
	}
	fmt.Printf("  Totals: %d sounding, %d rests, %d chord members, %d grace\n",
		pitched, rests, chords, grace)
	fmt.Printf("  Marks: %d articulations, %d ornaments, %d dynamics\n",
		artics, ornaments, dynamics)
	return nil
}

// FormatsCmd lists registered format handlers.
type FormatsCmd struct{}

func (c *FormatsCmd) Run() error {
	for _, h := range formats.List() {
		fmt.Printf("%-10s %s\n", h.Name, strings.Join(h.Extensions, " "))
	}
	return nil
}

// CapsulePackCmd packs a score run into an evidence capsule.
type CapsulePackCmd struct {
	Input       string `arg:"" help:"Input score file" type:"existingfile"`
	Out         string `required:"" help:"Output capsule archive path" type:"path"`
	From        string `help:"Force the input format instead of detecting it"`
	GridDivisor int    `name:"grid-divisor" help:"Quantization grid points per quarter for tick formats"`
}

func (c *CapsulePackCmd) Run() error {
	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.Input, err)
	}

	report, s, err := roundtrip.Run(filepath.Base(c.Input), data, roundtrip.Options{
		Format:      c.From,
		GridDivisor: c.GridDivisor,
	})
	if err != nil {
		return err
	}
	if err := packRun(c.Out, c.Input, data, s, report); err != nil {
		return err
	}

	fmt.Printf("Capsule: %s (%s)\n", c.Out, report.Status)
	return nil
}

// CapsuleVerifyCmd verifies a capsule archive's integrity.
type CapsuleVerifyCmd struct {
	Archive string `arg:"" help:"Path to capsule archive" type:"existingfile"`
}

func (c *CapsuleVerifyCmd) Run() error {
	tempDir, err := os.MkdirTemp("", "partitura-verify-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	arc, err := capsule.Unpack(c.Archive, tempDir)
	if err != nil {
		return fmt.Errorf("failed to unpack capsule: %w", err)
	}

	fmt.Printf("Capsule: %s\n", c.Archive)
	fmt.Printf("  Version: %s\n", arc.Manifest.CapsuleVersion)
	fmt.Printf("  Created: %s\n", arc.Manifest.CreatedAt)
	fmt.Printf("  Artifacts: %d\n", len(arc.Manifest.Artifacts))

	problems := arc.Verify()
	for _, problem := range problems {
		fmt.Printf("  [FAIL] %s\n", problem)
	}
	if len(problems) > 0 {
		return fmt.Errorf("verification failed: %d error(s)", len(problems))
	}

	fmt.Println("Verification passed!")
	return nil
}

// CorpusRecordCmd records a round-trip run in the corpus database.
type CorpusRecordCmd struct {
	Input       string `arg:"" help:"Input score file" type:"existingfile"`
	DB          string `name:"db" default:"corpus.db" help:"Corpus database path" type:"path"`
	From        string `help:"Force the input format instead of detecting it"`
	GridDivisor int    `name:"grid-divisor" help:"Quantization grid points per quarter for tick formats"`
}

func (c *CorpusRecordCmd) Run() error {
	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.Input, err)
	}

	report, _, err := roundtrip.Run(filepath.Base(c.Input), data, roundtrip.Options{
		Format:      c.From,
		GridDivisor: c.GridDivisor,
	})
	if err != nil {
		return err
	}

	store, err := corpus.Open(c.DB)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	regressed, prev, err := store.Regressed(ctx, filepath.Base(c.Input), report.Fingerprint)
	if err != nil {
		return err
	}

	if err := recordRun(ctx, c.DB, c.Input, report); err != nil {
		return err
	}

	fmt.Printf("Recorded %s: %s (fingerprint %s)\n",
		filepath.Base(c.Input), report.Status, report.Fingerprint[:12])
	if regressed {
		return fmt.Errorf("fingerprint changed since run %d (%s)", prev.ID, prev.Fingerprint[:12])
	}
	return nil
}

// CorpusListCmd lists recorded runs.
type CorpusListCmd struct {
	DB    string `name:"db" default:"corpus.db" help:"Corpus database path" type:"existingfile"`
	Limit int    `default:"20" help:"Maximum number of runs to show"`
}

func (c *CorpusListCmd) Run() error {
	store, err := corpus.Open(c.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, run := range runs {
		status := "pass"
		if !run.Pass {
			status = "FAIL"
		}
		fmt.Printf("%4d  %s  %-4s  %-8s  %s  %d violations, %d differences\n",
			run.ID, run.RecordedAt.Format("2006-01-02 15:04:05"), status,
			run.Format, run.Source, run.Violations, run.Differences)
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("partitura version %s\n", version)
	return nil
}

func parseLogLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("partitura"),
		kong.Description("Partitura - score reconstruction and verification toolkit"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	format := logging.FormatText
	if CLI.LogFormat == "json" {
		format = logging.FormatJSON
	}
	logging.InitLogger(parseLogLevel(CLI.LogLevel), format)

	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
