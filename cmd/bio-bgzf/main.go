// Command bio-bgzf compresses, decompresses, and inspects .bgzf files from
// the command line, exercising the encoding/bgzf package end to end.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"v.io/x/lib/vlog"

	"github.com/grailbio/bgzf/encoding/bgzf"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		vlog.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bio-bgzf",
		Short: "Compress, decompress, and inspect .bgzf files",
	}
	root.AddCommand(newCompressCmd())
	root.AddCommand(newDecompressCmd())
	root.AddCommand(newCatCmd())
	root.AddCommand(newVOffsetCmd())
	return root
}

func newCompressCmd() *cobra.Command {
	var level int
	cmd := &cobra.Command{
		Use:   "compress SRC DST",
		Short: "Compress SRC into a .bgzf file at DST",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			w, err := bgzf.Open(args[1], "w", bgzf.Options{Level: level})
			if err != nil {
				return err
			}
			if _, err := io.Copy(w, src); err != nil {
				w.Close()
				return err
			}
			return w.Close()
		},
	}
	cmd.Flags().IntVar(&level, "level", 0, "compression level (0 selects the library default)")
	return cmd
}

func newDecompressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decompress SRC DST",
		Short: "Decompress the .bgzf file SRC into DST",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := bgzf.Open(args[0], "r", bgzf.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			dst, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer dst.Close()

			_, err = io.Copy(dst, r)
			return err
		},
	}
	return cmd
}

func newCatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat SRC",
		Short: "Write the decompressed contents of the .bgzf file SRC to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := bgzf.Open(args[0], "r", bgzf.Options{})
			if err != nil {
				return err
			}
			defer r.Close()
			_, err = io.Copy(os.Stdout, r)
			return err
		},
	}
	return cmd
}

func newVOffsetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voffset SRC",
		Short: "Print the virtual offset at the current position of SRC after reading it to EOF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := bgzf.Open(args[0], "r", bgzf.Options{})
			if err != nil {
				return err
			}
			defer r.Close()
			if _, err := io.Copy(io.Discard, r); err != nil {
				return err
			}
			v, err := r.VirtualOffset()
			if err != nil {
				return err
			}
			fmt.Printf("%d (file=%d block=%d)\n", v, v.FileOffset(), v.BlockOffset())
			return nil
		},
	}
	return cmd
}
