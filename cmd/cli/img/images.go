package img

import (
	"bytes"
	"fmt"
	"github.com/charmbracelet/lipgloss"
	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/envstruct"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/spf13/cobra"
	"image/png"
	"log/slog"
	"os"
	"strings"
)

var Group = &cobra.Group{
	ID:    "img",
	Title: "Image operations",
}

var savedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")) //nolint:gochecknoglobals // style

func init() {
	Generate.Flags().String("out", "./out.png", "path to generated image file")
}

var Generate = &cobra.Command{
	Use:     "gen [prompt]",
	GroupID: "img",
	Short:   "Generate image",
	Long:    `Generates an image with the configured image model. OPENAI_API_KEY must be set.`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg ai.Config
		if err := envstruct.Populate(&cfg, os.LookupEnv); err != nil {
			return errors.Wrap(err, "populate ai config")
		}
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
		generator := ai.NewImageGenerator(cfg, logger)

		prompt := strings.Join(args, " ")
		imgBytes, err := generator.GenerateImage(cmd.Context(), prompt)
		if err != nil {
			return errors.Wrap(err, "generate image", slog.String("prompt", prompt))
		}
		if _, err = png.DecodeConfig(bytes.NewReader(imgBytes)); err != nil {
			return errors.Wrap(err, "decode png")
		}

		outPath, err := cmd.Flags().GetString("out")
		if err != nil {
			return errors.Wrap(err, "invalid out flag")
		}
		if err = os.WriteFile(outPath, imgBytes, 0o600); err != nil { //nolint:mnd // owner only
			return errors.Wrap(err, "write image", slog.String("path", outPath))
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), savedStyle.Render("The image was saved as "+outPath))
		return nil
	},
}
