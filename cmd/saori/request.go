package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pior/saori"
	"github.com/pior/saori/wire"
	"github.com/spf13/cobra"
)

type requestOptions struct {
	servers       []string
	network       string
	encoding      string
	sender        string
	securityLevel string
	timeout       time.Duration
	versionProbe  bool
	interactive   bool
}

func newRequestCmd() *cobra.Command {
	opts := &requestOptions{}

	cmd := &cobra.Command{
		Use:   "request [argument...]",
		Short: "Send a request to served modules",
		Long: `Send an Execute request with the given arguments, or a version probe
with --version, and print the response.

With --interactive, read commands from stdin instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := saori.CodecByName(opts.encoding)
			if err != nil {
				return err
			}

			client, err := saori.NewClient(opts.servers, saori.ClientConfig{
				Network: opts.network,
				Codec:   codec,
			})
			if err != nil {
				return err
			}
			defer client.Close()

			r := &requester{client: client, opts: opts, out: cmd.OutOrStdout()}

			if opts.interactive {
				return r.interactive(cmd.Context(), cmd.InOrStdin())
			}

			req := wire.NewVersionRequest()
			if !opts.versionProbe {
				req = wire.NewExecuteRequest(args...)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			resp, err := r.do(ctx, req)
			if err != nil {
				return err
			}
			printResponse(r.out, resp)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&opts.servers, "server", []string{"127.0.0.1:9801"}, "module addresses")
	cmd.Flags().StringVar(&opts.network, "network", "tcp", "network of the module addresses (tcp or unix)")
	cmd.Flags().StringVar(&opts.encoding, "encoding", "Shift_JIS", "wire encoding (Shift_JIS or UTF-8)")
	cmd.Flags().StringVar(&opts.sender, "sender", "saori", "Sender header")
	cmd.Flags().StringVar(&opts.securityLevel, "security-level", "Local", "SecurityLevel header")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "request timeout")
	cmd.Flags().BoolVar(&opts.versionProbe, "version", false, "send a version probe")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "read commands from stdin")
	return cmd
}

type requester struct {
	client *saori.Client
	opts   *requestOptions
	out    io.Writer
}

func (r *requester) do(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	req.Sender = r.opts.sender
	req.SecurityLevel = r.opts.securityLevel
	return r.client.Do(ctx, req)
}

func printResponse(w io.Writer, resp *wire.Response) {
	fmt.Fprintln(w, resp.Kind)
	if resp.HasResult {
		fmt.Fprintf(w, "Result: %s\n", resp.Result)
	}
	for i, v := range resp.Values {
		fmt.Fprintf(w, "Value%d: %s\n", i, v)
	}
}

func (r *requester) interactive(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(r.out, "SAORI request shell")
	fmt.Fprintln(r.out, "Commands: exec <arg>..., version, stats, ping, help, quit")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch strings.ToLower(parts[0]) {
		case "exec", "execute":
			r.timed(ctx, wire.NewExecuteRequest(parts[1:]...))

		case "version":
			r.timed(ctx, wire.NewVersionRequest())

		case "stats":
			r.printStats()

		case "ping":
			start := time.Now()
			pingCtx, cancel := context.WithTimeout(ctx, r.opts.timeout)
			err := r.client.Ping(pingCtx)
			cancel()
			if err != nil {
				fmt.Fprintf(r.out, "Ping failed: %v (took %v)\n", err, time.Since(start))
			} else {
				fmt.Fprintf(r.out, "Ping successful (took %v)\n", time.Since(start))
			}

		case "help":
			fmt.Fprintln(r.out, "Commands:")
			fmt.Fprintln(r.out, "  exec <arg>...  - Send an Execute request")
			fmt.Fprintln(r.out, "  version        - Send a version probe")
			fmt.Fprintln(r.out, "  stats          - Show client and pool statistics")
			fmt.Fprintln(r.out, "  ping           - Probe all modules")
			fmt.Fprintln(r.out, "  quit           - Exit")

		case "quit", "exit":
			return nil

		default:
			fmt.Fprintf(r.out, "Unknown command: %s. Type 'help' for available commands.\n", parts[0])
		}
	}

	return scanner.Err()
}

func (r *requester) timed(ctx context.Context, req *wire.Request) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.do(ctx, req)
	duration := time.Since(start)

	if err != nil {
		fmt.Fprintf(r.out, "Error: %v (took %v)\n", err, duration)
		return
	}
	printResponse(r.out, resp)
	fmt.Fprintf(r.out, "(took %v)\n", duration)
}

func (r *requester) printStats() {
	stats := r.client.Stats()
	fmt.Fprintf(r.out, "Requests: %d (ok %d, bad request %d, internal error %d, failed %d)\n",
		stats.Requests, stats.OK, stats.BadRequests, stats.InternalErrors, stats.Errors)

	poolStats := r.client.PoolStats()
	addrs := make([]string, 0, len(poolStats))
	for addr := range poolStats {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, addr := range addrs {
		ps := poolStats[addr]
		fmt.Fprintf(r.out, "Server %s:\n", addr)
		fmt.Fprintf(r.out, "  Total Connections: %d\n", ps.TotalConns)
		fmt.Fprintf(r.out, "  Active Connections: %d\n", ps.ActiveConns)
		fmt.Fprintf(r.out, "  Idle Connections: %d\n", ps.IdleConns)
		fmt.Fprintf(r.out, "  Created: %d, Destroyed: %d\n", ps.CreatedConns, ps.DestroyedConns)
	}
}
