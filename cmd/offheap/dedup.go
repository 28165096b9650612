package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/andreyvit/offheap"
	"github.com/andreyvit/offheap/codec"
	"github.com/andreyvit/offheap/logger"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup [file]",
	Short: "Print each distinct input line once, in order of first occurrence",
	Long: `Reads lines from the file (or standard input) into a disk-backed
insertion-ordered set and prints the distinct lines. Memory use does not
grow with the number of distinct lines.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDedup,
}

func init() {
	dedupCmd.Flags().Int("max-line", 1<<20, "longest accepted line in bytes")
}

func runDedup(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	maxLine, _ := cmd.Flags().GetInt("max-line")

	opts, err := collectionOptions()
	if err != nil {
		return err
	}
	set, err := offheap.OpenLinkedSet(codec.String, opts...)
	if err != nil {
		return err
	}
	defer set.Close()

	n, err := dedup(cmd, in, maxLine, set)
	if err != nil {
		return err
	}
	logger.Default().Info("dedup finished", "lines", n, "distinct", set.Len(), "key_bytes", set.KeyByteSize())
	return nil
}

func dedup(cmd *cobra.Command, in io.Reader, maxLine int, set *offheap.LinkedSet[string]) (int, error) {
	ctx := cmd.Context()
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	var n int
	for sc.Scan() {
		if n%4096 == 0 && ctx != nil && ctx.Err() != nil {
			return n, ctx.Err()
		}
		n++
		if _, err := set.Add(sc.Text()); err != nil {
			return n, err
		}
	}
	if err := sc.Err(); err != nil {
		return n, err
	}

	out := bufio.NewWriter(cmd.OutOrStdout())
	err := set.Range(func(line string) bool {
		_, werr := fmt.Fprintln(out, line)
		return werr == nil
	})
	if err != nil {
		return n, err
	}
	return n, out.Flush()
}
