package main

import (
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "query a running engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := resty.New().R().Get(fmt.Sprintf("%s/status", statusAddr))
		if err != nil {
			return fmt.Errorf("could not reach engine at %s: %w", statusAddr, err)
		}
		fmt.Println(resp.String())
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:6021", "admin server address")
}
