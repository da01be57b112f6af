package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/linkwatcher/internal/service"
	"github.com/standardbeagle/linkwatcher/internal/types"
)

// BrokenLinkReport is the JSON form of one broken link.
type BrokenLinkReport struct {
	Source     string `json:"source"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	Link       string `json:"link"`
	Kind       string `json:"kind"`
	Resolved   string `json:"resolved"`
	Suggestion string `json:"suggestion,omitempty"`
}

// CheckReport is the JSON output of `linkwatcher check`.
type CheckReport struct {
	Root       string             `json:"root"`
	Targets    int                `json:"targets"`
	References int                `json:"references"`
	Broken     []BrokenLinkReport `json:"broken"`
}

func checkCommand(c *cli.Context) error {
	svc, closer, err := newService(c)
	if err != nil {
		return err
	}
	defer closer()
	defer svc.Stop()

	keep, err := kindFilter(c.StringSlice("kind"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := svc.Scan(contextOf(c)); err != nil {
		return cli.Exit(fmt.Sprintf("scan failed: %v", err), 1)
	}
	report := svc.CheckLinks()
	if keep != nil {
		broken := report.Broken[:0]
		for _, b := range report.Broken {
			if keep(b.Reference.Kind) {
				broken = append(broken, b)
			}
		}
		report.Broken = broken
	}

	if c.Bool("json") {
		if err := outputCheckJSON(c.App.Writer, svc.Root(), report); err != nil {
			return err
		}
	} else {
		outputCheckHuman(c.App.Writer, report)
	}

	if !report.OK() {
		return cli.Exit("", 1)
	}
	return nil
}

// kindFilter parses --kind values. "markdown" selects every markdown kind;
// a nil filter keeps everything.
func kindFilter(names []string) (func(types.LinkKind) bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	markdown := false
	kinds := make(map[types.LinkKind]bool)
	for _, name := range names {
		if name == "markdown" {
			markdown = true
			continue
		}
		k, ok := types.ParseLinkKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown link kind %q", name)
		}
		kinds[k] = true
	}
	return func(k types.LinkKind) bool {
		return kinds[k] || (markdown && k.IsMarkdown())
	}, nil
}

func outputCheckJSON(w io.Writer, root string, report service.LinkReport) error {
	out := CheckReport{
		Root:       root,
		Targets:    report.Targets,
		References: report.References,
		Broken:     make([]BrokenLinkReport, 0, len(report.Broken)),
	}
	for _, b := range report.Broken {
		out.Broken = append(out.Broken, BrokenLinkReport{
			Source:     b.Reference.SourceFile,
			Line:       b.Reference.Line,
			Column:     b.Reference.ColStart,
			Link:       b.Reference.LinkTarget,
			Kind:       b.Reference.Kind.String(),
			Resolved:   b.Resolved,
			Suggestion: b.Suggestion,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func outputCheckHuman(w io.Writer, report service.LinkReport) {
	fmt.Fprintf(w, "Checked %d references to %d targets\n", report.References, report.Targets)
	if report.OK() {
		fmt.Fprintln(w, "No broken links found")
		return
	}
	fmt.Fprintf(w, "Found %d broken links:\n", len(report.Broken))
	for _, b := range report.Broken {
		ref := b.Reference
		fmt.Fprintf(w, "  %s:%d:%d  %s", ref.SourceFile, ref.Line, ref.ColStart, ref.LinkTarget)
		if b.Suggestion != "" {
			fmt.Fprintf(w, "  (did you mean %s?)", b.Suggestion)
		}
		fmt.Fprintln(w)
	}
}

func printStats(w io.Writer, svc *service.Service) {
	stats := svc.Stats()
	idx := svc.Index().Stats()
	fmt.Fprintln(w, "Statistics:")
	fmt.Fprintf(w, "  Files scanned:    %d\n", stats.FilesScanned)
	fmt.Fprintf(w, "  References found: %d\n", stats.ReferencesFound)
	fmt.Fprintf(w, "  Files tracked:    %d\n", idx.TrackedFiles)
	fmt.Fprintf(w, "  Files moved:      %d\n", stats.FilesMoved)
	fmt.Fprintf(w, "  Files created:    %d\n", stats.FilesCreated)
	fmt.Fprintf(w, "  Files deleted:    %d\n", stats.FilesDeleted)
	fmt.Fprintf(w, "  Links updated:    %d\n", stats.LinksUpdated)
	fmt.Fprintf(w, "  Errors:           %d\n", stats.Errors)
	if stats.WatchEvents > 0 || stats.WatchErrors > 0 {
		fmt.Fprintf(w, "  Watch events:     %d (%d errors)\n", stats.WatchEvents, stats.WatchErrors)
	}
}
