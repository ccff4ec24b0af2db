// tytool inspects TY RKV archives and decodes, dumps and exports the models inside them.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/Faultbox/tyviewer/pkg/rkv"
)

// errUsage makes main print the command's usage line.
var errUsage = errors.New("usage")

type command struct {
	names   []string
	args    string
	summary string
	run     func(args []string, out io.Writer) error
}

var commands []*command

func init() {
	commands = []*command{
		{[]string{"info"}, "<file.rkv>", "Show archive information", cmdInfo},
		{[]string{"list", "ls"}, "[-n N] <file.rkv> [pattern]", "List files (glob or substring)", cmdList},
		{[]string{"extract", "x"}, "<file.rkv> <name|glob> [output]", "Extract files to a directory", cmdExtract},
		{[]string{"search", "find"}, "[-n N] <file.rkv> <text>", "Search file names", cmdSearch},
		{[]string{"models"}, "<file.rkv>", "List models with their generation", cmdModels},
		{[]string{"inspect"}, "[-dump] [-log level] <file.rkv> <model>", "Decode a model and print its structure", cmdInspect},
		{[]string{"export"}, "[-format obj|gltf] [-out dir] <file.rkv> <model|glob>", "Export decoded models", cmdExport},
	}
}

func findCommand(name string) *command {
	for _, c := range commands {
		for _, n := range c.names {
			if n == name {
				return c
			}
		}
	}
	return nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	}

	c := findCommand(os.Args[1])
	if c == nil {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(2)
	}

	err := c.run(os.Args[2:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "Usage: tytool %s %s\n", c.names[0], c.args)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "tytool - TY the Tasmanian Tiger archive and model utility")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  tytool <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n           %s\n", c.names[0], c.args, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  tytool info Data_PC.rkv")
	fmt.Fprintln(w, `  tytool list Data_PC.rkv "*.mdl"`)
	fmt.Fprintln(w, "  tytool inspect -dump Data_PC.rkv act_01_ty.mdl")
	fmt.Fprintln(w, `  tytool export -format gltf -out ./export Data_PC.rkv "P00*"`)
}

// parseFlags parses a subcommand's flags and requires at least need
// positional arguments.
func parseFlags(fs *flag.FlagSet, args []string, need int) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil || fs.NArg() < need {
		return errUsage
	}
	return nil
}

func openArchive(path string) (*rkv.Archive, error) {
	archive, err := rkv.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening archive")
	}
	return archive, nil
}

// matchName reports whether the base name of f matches a glob pattern,
// ignoring case.
func matchName(pattern, f string) bool {
	matched, _ := filepath.Match(strings.ToLower(pattern), strings.ToLower(filepath.Base(f)))
	return matched
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

func cmdInfo(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	if err := parseFlags(fs, args, 1); err != nil {
		return err
	}
	archive, err := openArchive(fs.Arg(0))
	if err != nil {
		return err
	}

	byExt := make(map[string]int)
	var entryBytes uint64
	for _, name := range archive.List() {
		f, _ := archive.File(name)
		entryBytes += uint64(f.Size)
		ext := f.Ext()
		if ext == "" {
			ext = "(none)"
		}
		byExt[ext]++
	}

	exts := make([]string, 0, len(byExt))
	for ext := range byExt {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool {
		if byExt[exts[i]] != byExt[exts[j]] {
			return byExt[exts[i]] > byExt[exts[j]]
		}
		return exts[i] < exts[j]
	})

	const mb = 1 << 20
	fmt.Fprintf(out, "Archive: %s\n", fs.Arg(0))
	fmt.Fprintf(out, "Format:  %s\n", archive.Version())
	fmt.Fprintf(out, "Files:   %d\n", archive.Len())
	fmt.Fprintf(out, "Size:    %.2f MB on disk, %.2f MB of entries\n",
		float64(archive.Size())/mb, float64(entryBytes)/mb)
	fmt.Fprintln(out, "\nFiles by type:")
	for _, ext := range exts {
		fmt.Fprintf(out, "  %-10s %d\n", ext, byExt[ext])
	}
	return nil
}

func cmdList(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	limit := fs.Int("n", 0, "maximum number of names (0 = all)")
	if err := parseFlags(fs, args, 1); err != nil {
		return err
	}
	archive, err := openArchive(fs.Arg(0))
	if err != nil {
		return err
	}

	pattern := strings.ToLower(fs.Arg(1))
	shown := 0
	for _, f := range archive.List() {
		if pattern != "" && !matchName(pattern, f) && !strings.Contains(strings.ToLower(f), pattern) {
			continue
		}
		fmt.Fprintln(out, f)
		if shown++; *limit > 0 && shown >= *limit {
			break
		}
	}
	if pattern != "" {
		fmt.Fprintf(os.Stderr, "\n(%d files matched)\n", shown)
	}
	return nil
}

func cmdExtract(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	if err := parseFlags(fs, args, 2); err != nil {
		return err
	}
	archive, err := openArchive(fs.Arg(0))
	if err != nil {
		return err
	}
	target := fs.Arg(1)
	outDir := "."
	if fs.NArg() > 2 {
		outDir = fs.Arg(2)
	}

	var names []string
	if isGlob(target) {
		for _, f := range archive.List() {
			if matchName(target, f) {
				names = append(names, f)
			}
		}
	} else {
		if !archive.Contains(target) {
			return errors.Wrap(rkv.ErrFileNotFound, target)
		}
		names = []string{target}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	extracted := 0
	for _, name := range names {
		data, err := archive.Read(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", name, err)
			continue
		}
		// Entry names are flat; folders only group entries inside the archive.
		dst := filepath.Join(outDir, filepath.Base(name))
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", dst, err)
			continue
		}
		fmt.Fprintf(out, "Extracted: %s (%d bytes)\n", dst, len(data))
		extracted++
	}
	if isGlob(target) {
		fmt.Fprintf(os.Stderr, "\nExtracted %d files\n", extracted)
	}
	if extracted == 0 && len(names) > 0 {
		return errors.Errorf("nothing extracted from %s", fs.Arg(0))
	}
	return nil
}

func cmdSearch(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	limit := fs.Int("n", 50, "maximum number of results (0 = all)")
	if err := parseFlags(fs, args, 2); err != nil {
		return err
	}
	archive, err := openArchive(fs.Arg(0))
	if err != nil {
		return err
	}

	text := strings.ToLower(fs.Arg(1))
	found := 0
	for _, f := range archive.List() {
		if !strings.Contains(strings.ToLower(f), text) {
			continue
		}
		fmt.Fprintln(out, f)
		if found++; *limit > 0 && found >= *limit {
			fmt.Fprintf(os.Stderr, "\n(showing first %d matches, use -n 0 for all)\n", *limit)
			return nil
		}
	}
	if found == 0 {
		fmt.Fprintln(os.Stderr, "No files found")
	} else {
		fmt.Fprintf(os.Stderr, "\n(%d files found)\n", found)
	}
	return nil
}
