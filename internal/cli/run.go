package cli

import (
	"github.com/spf13/cobra"

	"github.com/phanxgames/arbor/internal/app"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open the editor window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEditor()
		},
	}
}

func runEditor() error {
	cfg := loadConfig()
	st, err := storeFor(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return app.New(cfg, st).Run()
}
