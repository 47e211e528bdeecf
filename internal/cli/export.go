package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phanxgames/arbor/store"
)

func exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the node positions to a CSV file",
		Long:  "Dump every node as an id,x,y row without opening the editor.\nThe default output file sits next to the store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			st, err := storeFor(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			t := st.Load()
			path := out
			if path == "" {
				path = filepath.Join(cfg.Store.Dir, "nodes.csv")
			}
			if err := store.ExportCSV(t, path); err != nil {
				return err
			}
			good.Fprintf(cmd.OutOrStdout(), "exported %d nodes to %s\n", len(t.Nodes), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <store>/nodes.csv)")
	return cmd
}
