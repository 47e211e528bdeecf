package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the store location and tree counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			st, err := storeFor(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			t := st.Load()
			unlocked := 0
			for _, n := range t.Nodes {
				if n.Unlocked {
					unlocked++
				}
			}

			out := cmd.OutOrStdout()
			subtle.Fprintln(out, "store")
			fmt.Fprintf(out, "  %s\n", cfg.Store.Dir)
			subtle.Fprintln(out, "tree")
			fmt.Fprintf(out, "  %d nodes (%d unlocked), %d edges\n", len(t.Nodes), unlocked, len(t.Edges))
			return nil
		},
	}
}
