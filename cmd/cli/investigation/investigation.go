// Package investigation solves mysteries from the terminal against a local SQLite database.
package investigation

import (
	"context"
	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/detective"
	"github.com/myrjola/sleuth/internal/envstruct"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/logging"
	"github.com/myrjola/sleuth/internal/repositories"
	"github.com/myrjola/sleuth/internal/sqlite"
	"github.com/spf13/cobra"
	"log/slog"
	"strings"
)

var Group = &cobra.Group{
	ID:    "case",
	Title: "Investigations",
}

const (
	dbFlag     = "db"
	playerFlag = "player"
	widthFlag  = "width"

	progressBuffer = 8
)

// config is read from the environment once when the commands are built.
type config struct {
	SqliteURL string `env:"SLEUTH_SQLITE_URL" envDefault:"./sleuth.sqlite"`
	AI        ai.Config
}

// commands builds the investigation commands around a shared config.
type commands struct {
	cfg config
}

// Commands returns fresh investigation commands sharing the database and player flags. The environment is read through
// lookupEnv, typically os.LookupEnv.
func Commands(lookupEnv func(string) (string, bool)) ([]*cobra.Command, error) {
	var cfg config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return nil, errors.Wrap(err, "populate cli config")
	}
	if err := envstruct.Populate(&cfg.AI, lookupEnv); err != nil {
		return nil, errors.Wrap(err, "populate ai config")
	}
	c := commands{cfg: cfg}
	cmds := []*cobra.Command{c.newCmd(), c.showCmd(), c.askCmd(), c.clueCmd(), c.accuseCmd()}
	for _, cmd := range cmds {
		cmd.GroupID = Group.ID
		cmd.Flags().String(dbFlag, cfg.SqliteURL, "SQLite database URL")
		cmd.Flags().String(playerFlag, "cli", "player ID owning the investigations")
		cmd.Flags().Int(widthFlag, defaultWidth, "wrap text at this width")
	}
	return cmds, nil
}

// session is the state shared by every command invocation.
type session struct {
	service  *detective.Service
	playerID string
	printer  printer
	close    func()
}

func (c commands) openSession(cmd *cobra.Command) (*session, error) {
	ctx := cmd.Context()
	flags := cmd.Flags()
	dbURL, err := flags.GetString(dbFlag)
	if err != nil {
		return nil, errors.Wrap(err, "db flag")
	}
	playerID, err := flags.GetString(playerFlag)
	if err != nil {
		return nil, errors.Wrap(err, "player flag")
	}
	width, err := flags.GetInt(widthFlag)
	if err != nil {
		return nil, errors.Wrap(err, "width flag")
	}

	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelWarn,
		ReplaceAttr: nil,
	})))

	text, closeText, err := ai.NewTextGenerator(ctx, c.cfg.AI, logger)
	if err != nil {
		return nil, errors.Wrap(err, "new text generator")
	}

	db, err := sqlite.NewDatabase(ctx, dbURL, logger)
	if err != nil {
		_ = closeText()
		return nil, errors.Wrap(err, "open database", slog.String("url", dbURL))
	}
	if err = repositories.NewPlayerRepository(db, logger).Ensure(ctx, playerID); err != nil {
		_ = closeText()
		_ = db.Close()
		return nil, errors.Wrap(err, "ensure player", slog.String("player_id", playerID))
	}

	return &session{
		service:  detective.NewService(repositories.NewInvestigationRepository(db, logger), text, nil, logger),
		playerID: playerID,
		printer:  printer{out: cmd.OutOrStdout(), width: width},
		close: func() {
			if closeErr := errors.Join(closeText(), db.Close()); closeErr != nil {
				logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelError, "failed to close session",
					errors.SlogError(closeErr))
			}
		},
	}, nil
}

// withSession opens a session for the duration of run.
func (c commands) withSession(
	run func(cmd *cobra.Command, s *session, args []string) error,
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := c.openSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()
		return run(cmd, s, args)
	}
}

func (c commands) newCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new [prompt]",
		Short: "Generate a new investigation",
		Long:  `Writes a new mystery from the prompt and prints the scene once it is ready.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: c.withSession(func(cmd *cobra.Command, s *session, args []string) error {
			ctx := cmd.Context()
			inv, err := s.service.CreateInvestigation(ctx, s.playerID, strings.Join(args, " "))
			if err != nil {
				return errors.Wrap(err, "create investigation")
			}

			progress := make(chan detective.Progress, progressBuffer)
			done := make(chan error, 1)
			go func() {
				done <- s.service.Generate(ctx, inv, progress)
				close(progress)
			}()
			for p := range progress {
				s.printer.progress(p)
			}
			if err = <-done; err != nil {
				return errors.Wrap(err, "generate investigation")
			}

			if inv, err = s.service.Get(ctx, s.playerID, inv.ID); err != nil {
				return errors.Wrap(err, "get investigation")
			}
			s.printer.investigation(inv)
			return nil
		}),
	}
}

func (c commands) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [investigation]",
		Short: "Show an investigation or list them all",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.withSession(func(cmd *cobra.Command, s *session, args []string) error {
			ctx := cmd.Context()
			if len(args) == 0 {
				invs, err := s.service.List(ctx, s.playerID)
				if err != nil {
					return errors.Wrap(err, "list investigations")
				}
				s.printer.list(invs)
				return nil
			}
			inv, err := s.service.Get(ctx, s.playerID, args[0])
			if err != nil {
				return errors.Wrap(err, "get investigation")
			}
			s.printer.investigation(inv)
			return nil
		}),
	}
}

func (c commands) askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [investigation] [character] [question]",
		Short: "Question a character",
		Args:  cobra.MinimumNArgs(3), //nolint:mnd // see Use
		RunE: c.withSession(func(cmd *cobra.Command, s *session, args []string) error {
			turn, err := s.service.Interrogate(cmd.Context(), s.playerID, args[0], args[1], strings.Join(args[2:], " "))
			if err != nil {
				return errors.Wrap(err, "interrogate")
			}
			s.printer.turn(turn)
			return nil
		}),
	}
}

func (c commands) clueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clue [investigation] [clue]",
		Short: "Investigate a clue",
		Args:  cobra.ExactArgs(2), //nolint:mnd // see Use
		RunE: c.withSession(func(cmd *cobra.Command, s *session, args []string) error {
			turn, err := s.service.InvestigateClue(cmd.Context(), s.playerID, args[0], args[1])
			if err != nil {
				return errors.Wrap(err, "investigate clue")
			}
			s.printer.turn(turn)
			return nil
		}),
	}
}

func (c commands) accuseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accuse [investigation] [name]",
		Short: "Accuse a character by name. There is only one chance.",
		Args:  cobra.MinimumNArgs(2), //nolint:mnd // see Use
		RunE: c.withSession(func(cmd *cobra.Command, s *session, args []string) error {
			suspect := detective.Suspect{CharacterID: "", Name: strings.Join(args[1:], " ")}
			turn, err := s.service.Accuse(cmd.Context(), s.playerID, args[0], suspect)
			if err != nil {
				return errors.Wrap(err, "accuse")
			}
			s.printer.turn(turn)
			s.printer.investigation(turn.Investigation)
			return nil
		}),
	}
}
