package main

import (
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"

	"github.com/andreyvit/offheap"
	"github.com/andreyvit/offheap/codec"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "List the entries of a persistent string map",
	Args:  cobra.NoArgs,
	RunE:  runDump,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the size of a persistent string map and collection metrics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	for _, c := range []*cobra.Command{dumpCmd, statsCmd} {
		c.Flags().String("dir", "", "collection directory")
		c.Flags().Bool("linked", false, "the directory holds an insertion-ordered map")
	}
	dumpCmd.Flags().Bool("indexes", false, "also list the insertion index of a linked map")
	statsCmd.Flags().Bool("metrics", false, "print collection metrics in Prometheus text format")
}

func openPersisted(cmd *cobra.Command) (dumpFunc func(offheap.DumpFlags) error, stats offheap.Stats, closer func() error, err error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		return nil, offheap.Stats{}, nil, errors.New("--dir is required")
	}
	linked, _ := cmd.Flags().GetBool("linked")
	opts, err := collectionOptions()
	if err != nil {
		return nil, offheap.Stats{}, nil, err
	}
	opts = append(opts, offheap.WithDir(dir), offheap.WithPersistent(true))

	w := cmd.OutOrStdout()
	if linked {
		l, err := offheap.OpenLinkedMap(codec.String, codec.String, opts...)
		if err != nil {
			return nil, offheap.Stats{}, nil, err
		}
		return func(f offheap.DumpFlags) error { return l.Dump(w, f) }, l.Stats(), l.Close, nil
	}
	m, err := offheap.OpenMap(codec.String, codec.String, opts...)
	if err != nil {
		return nil, offheap.Stats{}, nil, err
	}
	return func(f offheap.DumpFlags) error { return m.Dump(w, f) }, m.Stats(), m.Close, nil
}

func runDump(cmd *cobra.Command, _ []string) error {
	dump, _, closer, err := openPersisted(cmd)
	if err != nil {
		return err
	}
	defer closer()

	flags := offheap.DumpHeader | offheap.DumpEntries
	if indexes, _ := cmd.Flags().GetBool("indexes"); indexes {
		flags |= offheap.DumpIndexes
	}
	return dump(flags)
}

func runStats(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		_, s, closer, err := openPersisted(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "entries = %d\nkey_bytes = %d\nvalue_bytes = %d\ntotal_bytes = %d\n", s.Entries, s.KeyBytes, s.ValueBytes, s.TotalBytes())
		if err := closer(); err != nil {
			return err
		}
	}
	if m, _ := cmd.Flags().GetBool("metrics"); m {
		offheap.DefaultRegistry()
		metrics.WritePrometheus(w, false)
	}
	return nil
}
