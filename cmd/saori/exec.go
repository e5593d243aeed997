package main

import (
	"io"

	"github.com/pior/saori"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type execOptions struct {
	encoding string
	strict   bool
	nul      bool
	dir      string
}

func newExecCmd() *cobra.Command {
	opts := &execOptions{}

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Answer one request read from stdin",
		Long: `Read one raw request from stdin and write the response to stdout.

Bytes are decoded and encoded with --encoding, as a host would pass them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := saori.CodecByName(opts.encoding)
			if err != nil {
				return err
			}

			in, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}

			module := saori.NewModule(saori.Config{
				Codec:  codec,
				Strict: opts.strict,
				Logger: zap.NewNop(),
			})
			if err := module.Load(opts.dir); err != nil {
				return err
			}
			defer module.Unload()

			var out []byte
			if opts.nul {
				out = module.Request(cmd.Context(), in)
			} else {
				out = module.HandleBytes(cmd.Context(), in)
			}

			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.encoding, "encoding", "Shift_JIS", "byte encoding of stdin and stdout (Shift_JIS or UTF-8)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "reject unrecognized header lines")
	cmd.Flags().BoolVar(&opts.nul, "nul", false, "terminate the response with a NUL byte")
	cmd.Flags().StringVar(&opts.dir, "dir", ".", "module directory reported to the load notification")
	return cmd
}
