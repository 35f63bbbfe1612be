package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arloliu/meridian/topology"
)

func newTopologyCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "topology",
		Short: "Validate the configured topology and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}

			topo, err := topology.New(s.Datacenters, s.ActiveDatacenter)
			if err != nil {
				return err
			}

			snap := topo.Snapshot()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "policy: %s\n", s.Policy)
			fmt.Fprintf(out, "active: %s\n", snap.Active())

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATACENTER\tNODE\tWEIGHT")
			for _, dc := range snap.Datacenters() {
				for _, node := range dc.Nodes {
					fmt.Fprintf(tw, "%s\t%s\t%d\n", dc.Name, node.Address, node.EffectiveWeight())
				}
			}

			return tw.Flush()
		},
	}
}
