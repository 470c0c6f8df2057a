package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/webcontrol/internal/auth"
)

var passwordCount int

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Generate server passwords",
	Long: `Print freshly generated passwords in the format the server uses: six
random digits from a cryptographic source.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if passwordCount < 1 {
			return fmt.Errorf("--count must be at least 1")
		}
		for i := 0; i < passwordCount; i++ {
			fmt.Println(auth.GenerateRandomPassword())
		}
		return nil
	},
}

func init() {
	passwordCmd.Flags().IntVar(&passwordCount, "count", 1, "Number of passwords to print")
	rootCmd.AddCommand(passwordCmd)
}
