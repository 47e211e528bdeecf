package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/phanxgames/arbor/tree"
)

func seedCmd() *cobra.Command {
	var (
		count int
		force bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the store with a demo tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			st, err := storeFor(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if existing := st.Load(); len(existing.Nodes) > 0 && !force {
				warn.Fprintf(cmd.OutOrStdout(), "store already has %d nodes, use --force to overwrite\n", len(existing.Nodes))
				return nil
			}

			t := demoTree(count)
			if err := st.SaveAll(t); err != nil {
				return err
			}
			good.Fprintf(cmd.OutOrStdout(), "seeded %d nodes and %d edges\n", len(t.Nodes), len(t.Edges))
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 8, "number of nodes to generate")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing tree")
	return cmd
}

// demoTree lays count nodes on a spiral, chains them with edges, and gives
// the first few some objectives and an unlock rule to play with.
func demoTree(count int) *tree.Tree {
	if count < 1 {
		count = 1
	}
	t := tree.New()

	var prev *tree.Node
	for i := 0; i < count; i++ {
		angle := float64(i) * 0.9
		radius := 90 + float64(i)*55
		n := t.AddNode(&tree.Node{
			X:          math.Cos(angle) * radius,
			Y:          math.Sin(angle) * radius,
			Title:      fmt.Sprintf("Skill %d", i+1),
			Difficulty: tree.ClampDifficulty(i * 4),
			Unlocked:   i == 0,
		})
		if i < 3 {
			n.Objectives = []tree.Objective{
				{Text: fmt.Sprintf("Practice skill %d", i+1)},
				{Text: "Pass the trial"},
			}
		}
		if i > 0 {
			n.Rule = "done(self) == total(self) and total(self) > 0"
		}
		if prev != nil {
			kind := tree.EdgeStraight
			if i%3 == 0 {
				kind = tree.EdgeCurved
			}
			t.AddEdge(prev.ID, n.ID, kind)
		}
		prev = n
	}
	return t
}
