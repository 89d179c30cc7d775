package main

import (
	"fmt"
	"github.com/joho/godotenv"
	"github.com/myrjola/sleuth/cmd/cli/img"
	"github.com/myrjola/sleuth/cmd/cli/investigation"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/spf13/cobra"
	"io/fs"
	"os"
)

func init() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rootCmd.AddGroup(img.Group)
	rootCmd.AddCommand(img.Generate)
	cmds, err := investigation.Commands(os.LookupEnv)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rootCmd.AddGroup(investigation.Group)
	rootCmd.AddCommand(cmds...)
}

var rootCmd = &cobra.Command{
	Use:           "sleuth-cli",
	Long:          `Command line utilities for Sleuth. Solve mysteries from the terminal and generate images.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
