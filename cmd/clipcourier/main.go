package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memohai/clipcourier/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:   "clipcourier",
		Short: "Telegram bot that fetches YouTube media and delivers it in bounded-size parts",
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.GetInfo())
		},
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
