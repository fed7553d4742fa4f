package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmontanari/screenops/internal/ops"
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the available operations",
	Run: func(cmd *cobra.Command, args []string) {
		group := -1
		for _, d := range ops.Descriptors() {
			if d.Group != group {
				if group != -1 {
					fmt.Println()
				}
				group = d.Group
			}
			fmt.Printf("%-22s %s\n", d.ID, d.Name)
			if d.Description != "" {
				fmt.Printf("%-22s %s\n", "", d.Description)
			}
			for _, in := range d.Inputs {
				fmt.Printf("%-22s   %s (%s, default %v)\n", "", in.Name, in.Type, in.Default)
			}
		}
	},
}
