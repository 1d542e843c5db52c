package main

import (
	"fmt"
	"strings"

	"github.com/justyntemme/razorops/internal/checksum"
	"github.com/spf13/cobra"
)

// NewChecksumCmd prints or verifies file digests.
func NewChecksumCmd(opts *rootOptions) *cobra.Command {
	var (
		algo   string
		verify string
	)
	cmd := &cobra.Command{
		Use:   "checksum FILE...",
		Short: "Print file digests",
		Long: "Print the digest of every FILE in the format of sha256sum. Supported algorithms: " +
			strings.Join(checksum.Algorithms(), ", ") + ".",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verify != "" {
				if len(args) != 1 {
					return fmt.Errorf("--verify takes exactly one file")
				}
				ok, err := checksum.Verify(args[0], algo, verify)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s: %s mismatch", args[0], algo)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", args[0])
				return nil
			}

			for _, path := range args {
				sum, err := checksum.SumContext(cmd.Context(), path, algo)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&algo, "algorithm", "a", "sha256", "digest algorithm")
	cmd.Flags().StringVar(&verify, "verify", "", "expected digest; exit non-zero on mismatch")
	return cmd
}
