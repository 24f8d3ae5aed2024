package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/fullres/internal/acquire/strategy"
)

var proxiesCmd = &cobra.Command{
	Use:   "proxies",
	Short: "List the configured fallback chain and the built-in proxies",
	RunE:  runProxies,
}

var reverseCmd = &cobra.Command{
	Use:   "reverse <url>...",
	Short: "Recover the original url from a proxied one",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReverse,
}

func init() {
	rootCmd.AddCommand(proxiesCmd)
	rootCmd.AddCommand(reverseCmd)
}

func runProxies(cmd *cobra.Command, args []string) error {
	chain, err := cfg.BuildStrategies()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tNAME\tTAG")
	for i, s := range chain.All() {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, s.Name(), dash(s.Tag()))
	}
	for _, name := range strategy.BuiltinNames() {
		if _, err := chain.ByName(name); err == nil {
			continue
		}
		s, _ := strategy.Builtin(name)
		fmt.Fprintf(w, "-\t%s\t%s\n", s.Name(), dash(s.Tag()))
	}
	return w.Flush()
}

func runReverse(cmd *cobra.Command, args []string) error {
	all, err := strategy.NewRegistryFromNames(strategy.BuiltinNames()...)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, u := range args {
		original, name := all.Reverse(u)
		fmt.Fprintf(w, "%s\t%s\n", dash(name), original)
	}
	return w.Flush()
}
