// beads-merge-driver is the git merge driver for events.jsonl: the merged
// file is the union of the non-blank lines of base, local, and remote,
// deduplicated by exact line equality. Events are append-only and never
// rewritten, so a line union loses nothing; the replay engine re-sorts by
// event id and tolerates any output order.
//
// Configure it in .git/config:
//
//	[merge "beads"]
//	    name = beads event log merge
//	    driver = beads-merge-driver %O %A %B
//
// with a .gitattributes entry:
//
//	.beads/events.jsonl merge=beads
//
// Git expects the result written back to the local file (%A).
package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "beads-merge-driver <base> <local> <remote>",
	Short:        "Union-merge beads event logs",
	Args:         cobra.ExactArgs(3),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		merged, err := mergeFiles(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		return writeResult(args[1], merged)
	},
}

// mergeFiles returns the sorted union of the non-blank lines of the three
// files. A missing file contributes nothing: a freshly created log has no
// base version.
func mergeFiles(paths ...string) ([]string, error) {
	set := make(map[string]struct{})
	for _, path := range paths {
		if err := readLines(path, set); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	merged := make([]string, 0, len(set))
	for line := range set {
		merged = append(merged, line)
	}
	sort.Strings(merged)
	return merged, nil
}

func readLines(path string, set map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			set[line] = struct{}{}
		}
	}
	return scanner.Err()
}

func writeResult(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			_ = f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
