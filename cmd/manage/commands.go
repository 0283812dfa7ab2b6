package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pollsite/backend/config"
	"github.com/pollsite/backend/internal/auth"
	"github.com/pollsite/backend/internal/models"
	"github.com/pollsite/backend/internal/store"
)

// openStore is replaced in tests.
var openStore = func(ctx context.Context, logger *zap.Logger) (*store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return store.Open(ctx, cfg.Database, logger)
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "manage",
		Short:        "Administrative commands for the polls site",
		SilenceUsage: true,
	}
	root.AddCommand(
		newMigrateCmd(logger),
		newCreateUserCmd(logger),
		newAddQuestionCmd(logger),
		newListQuestionsCmd(logger),
		newListUsersCmd(logger),
	)
	return root
}

// withStore opens the database for the duration of fn.
func withStore(cmd *cobra.Command, logger *zap.Logger, fn func(ctx context.Context, s *store.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func newMigrateCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, logger, func(ctx context.Context, s *store.Store) error {
				if err := s.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", s.Driver)
				return nil
			})
		},
	}
}

func newCreateUserCmd(logger *zap.Logger) *cobra.Command {
	var p auth.CreateUserParams
	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a login account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, logger, func(ctx context.Context, s *store.Store) error {
				u, err := auth.CreateUser(ctx, s.Users, p)
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, staff=%t)\n", u.Username, u.ID, u.IsStaff)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&p.Username, "username", "", "login name")
	cmd.Flags().StringVar(&p.Password, "password", "", "plain password, stored as a bcrypt hash")
	cmd.Flags().BoolVar(&p.IsStaff, "staff", false, "allow access to the staff API")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newAddQuestionCmd(logger *zap.Logger) *cobra.Command {
	var (
		text    string
		days    int
		choices []string
	)
	cmd := &cobra.Command{
		Use:   "addquestion",
		Short: "Create a question published --days from now (negative for the past)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if text == "" {
				return errors.New("--text must not be empty")
			}
			q := &models.Question{Text: text, PubDate: time.Now().AddDate(0, 0, days)}
			for _, c := range choices {
				q.Choices = append(q.Choices, models.Choice{Text: c})
			}
			return withStore(cmd, logger, func(ctx context.Context, s *store.Store) error {
				if err := s.Questions.Create(ctx, q); err != nil {
					return fmt.Errorf("create question: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created question %d with %d choices\n", q.ID, len(q.Choices))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "question text")
	cmd.Flags().IntVar(&days, "days", 0, "publication offset in days from now")
	cmd.Flags().StringArrayVar(&choices, "choice", nil, "choice text (repeatable)")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func newListQuestionsCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "listquestions",
		Short: "List every question, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, logger, func(ctx context.Context, s *store.Store) error {
				list, err := s.Questions.List(ctx)
				if err != nil {
					return fmt.Errorf("list questions: %w", err)
				}
				return printQuestions(cmd.OutOrStdout(), list, time.Now())
			})
		},
	}
}

func printQuestions(w io.Writer, list []models.Question, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPUB_DATE\tLIVE\tRECENT\tQUESTION")
	for _, q := range list {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%t\t%s\n", q.ID, q.PubDate.Local().Format(time.RFC3339),
			q.IsPublished(now), q.WasPublishedRecently(now), q.Text)
	}
	return tw.Flush()
}

func newListUsersCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "listusers",
		Short: "List login accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, logger, func(ctx context.Context, s *store.Store) error {
				list, err := s.Users.List(ctx)
				if err != nil {
					return fmt.Errorf("list users: %w", err)
				}
				return printUsers(cmd.OutOrStdout(), list)
			})
		},
	}
}

func printUsers(w io.Writer, list []models.UserPublic) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tSTAFF\tLAST_LOGIN")
	for _, u := range list {
		last := "never"
		if u.LastLogin != nil {
			last = u.LastLogin.Local().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%t\t%s\n", u.ID, u.Username, u.IsStaff, last)
	}
	return tw.Flush()
}
