package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Klingon-tech/klingnet-consolidator/config"
	"github.com/Klingon-tech/klingnet-consolidator/internal/rpcclient"
	"github.com/spf13/cobra"
)

var defaultRPCURL = fmt.Sprintf("http://127.0.0.1:%d", config.DefaultRPCPort)

type cliOptions struct {
	rpcURL  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "consolidator-cli",
		Short:         "Control a running consolidatord",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.rpcURL, "rpc", defaultRPCURL, "consolidatord JSON-RPC URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Bound on the whole call")

	root.AddCommand(
		jobCmd(opts, "consolidate [feerate] [min_utxos]",
			"Consolidate now at the given or estimated feerate", "consolidate", true),
		jobCmd(opts, "below [feerate] [min_utxos]",
			"Consolidate once the fee estimate drops to the feerate", "consolidate-below", true),
		jobCmd(opts, "preview [feerate] [min_utxos]",
			"Show the coins a consolidation would spend", "consolidate-preview", true),
		jobCmd(opts, "cancel", "Cancel the running consolidate-below job", "consolidate-cancel", false),
		jobCmd(opts, "status", "Show the consolidate-below job", "consolidate-status", false),
	)
	return root
}

// jobCmd builds a command that forwards positional arguments to method.
func jobCmd(opts *cliOptions, use, short, method string, takesArgs bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var params interface{}
			if takesArgs {
				p, err := positionalParams(args)
				if err != nil {
					return err
				}
				params = p
			}
			return call(cmd, opts, method, params)
		},
	}
	if takesArgs {
		cmd.Args = cobra.MaximumNArgs(2)
	}
	return cmd
}

// positionalParams converts [feerate] [min_utxos] into the array form the
// daemon accepts. Values are checked for shape only; the daemon validates
// them against the node's fee bounds.
func positionalParams(args []string) ([]uint64, error) {
	names := []string{"feerate", "min_utxos"}
	params := make([]uint64, 0, len(args))
	for i, a := range args {
		bits := 32
		if i == 1 {
			bits = 64
		}
		v, err := strconv.ParseUint(a, 10, bits)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a non-negative integer", names[i], a)
		}
		params = append(params, v)
	}
	return params, nil
}

func call(cmd *cobra.Command, opts *cliOptions, method string, params interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	client := rpcclient.NewWithTimeout(opts.rpcURL, opts.timeout)
	var result json.RawMessage
	if err := client.CallContext(ctx, method, params, &result); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, result, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.String())
	return nil
}
