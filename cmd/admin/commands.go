package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gatehouse/internal/bootstrap"
	"gatehouse/internal/config"
	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/repository"
	"gatehouse/internal/validation"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app holds what every subcommand needs. Tests fill cfg and db directly.
type app struct {
	cfg   *config.Config
	db    *gorm.DB
	users repository.UserRepository
	out   io.Writer
}

func (a *app) connect(ctx context.Context) error {
	if a.cfg == nil {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
	}
	if a.db == nil {
		db, _, err := bootstrap.InitRuntime(ctx, a.cfg, bootstrap.Options{})
		if err != nil {
			return err
		}
		a.db = db
	}
	if a.users == nil {
		a.users = repository.NewUserRepository(a.db)
	}
	return nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Gatehouse operator tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.connect(cmd.Context())
		},
	}
	root.SetOut(a.out)
	root.AddCommand(
		setRoleCmd(a),
		assignFlatCmd(a),
		listCmd(a),
		tokenCmd(a),
	)
	return root
}

func parseUserID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return uint(id), nil
}

func setRoleCmd(a *app) *cobra.Command {
	var flat string
	cmd := &cobra.Command{
		Use:   "set-role <user-id> <role>",
		Short: "Change a user's role (guard, resident, admin, business)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			role := models.Role(strings.ToLower(strings.TrimSpace(args[1])))
			if !role.Valid() {
				return fmt.Errorf("unknown role %q", args[1])
			}

			user, err := a.users.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if flat != "" {
				user.FlatNumber = strings.TrimSpace(flat)
			}
			if role == models.RoleResident {
				if err := validation.ValidateFlatNumber(user.FlatNumber); err != nil {
					return fmt.Errorf("residents need a flat (use --flat): %w", err)
				}
			}
			user.Role = role
			user.IsAdmin = role == models.RoleAdmin
			if err := a.users.Update(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "✅ %s (ID: %d) is now %s in %s\n", user.FullName, user.ID, user.Role, user.SocietyName)
			return nil
		},
	}
	cmd.Flags().StringVar(&flat, "flat", "", "flat number to assign alongside the role")
	return cmd
}

func assignFlatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assign-flat <user-id> <flat>",
		Short: "Move a resident to another flat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			flat := strings.TrimSpace(args[1])
			if err := validation.ValidateFlatNumber(flat); err != nil {
				return err
			}

			user, err := a.users.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if user.Role != models.RoleResident {
				return fmt.Errorf("user %d is a %s; only residents have flats", user.ID, user.Role)
			}
			user.FlatNumber = flat
			if err := a.users.Update(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "✅ %s (ID: %d) now lives at %s\n", user.FullName, user.ID, flat)
			return nil
		},
	}
}

func listCmd(a *app) *cobra.Command {
	var society, role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the users of a society",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := models.Role(strings.ToLower(role))
			if r != "" && !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			users, err := a.users.ListBySociety(cmd.Context(), society, r)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintf(a.out, "No users found in %s\n", society)
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE\tFLAT\tPHONE")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.FullName, u.Role, u.FlatNumber, u.Phone)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&society, "society", "", "society name")
	cmd.Flags().StringVar(&role, "role", "", "only users with this role")
	_ = cmd.MarkFlagRequired("society")
	return cmd
}

func tokenCmd(a *app) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint an access token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			user, err := a.users.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			tok, err := middleware.IssueAccessToken(middleware.TokenConfigFrom(a.cfg), user.ID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
