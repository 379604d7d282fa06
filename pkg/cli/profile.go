package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage the local account and subscription",
		Commands: []*cli.Command{
			profileRegisterCommand(),
			profileLoginCommand(),
			profileSimpleCommand("logout", "End the session", func(ctx context.Context, w io.Writer, e *env) error {
				return e.profile.Logout(ctx)
			}),
			profileSimpleCommand("show", "Show the logged-in user", func(ctx context.Context, w io.Writer, e *env) error {
				user, err := e.profile.Current(ctx)
				if err != nil {
					return err
				}
				if user == nil {
					fmt.Fprintf(w, "%s: %s\n", e.locale.Labels.CurrentPlan, e.locale.Labels.FreeTier)
					return nil
				}
				printUser(w, e, user)
				return nil
			}),
			profileUpdateCommand(),
			profileUpgradeCommand(),
		},
	}
}

func printUser(w io.Writer, e *env, user *model.User) {
	labels := e.locale.Labels
	field(w, labels.Name, user.Name)
	field(w, labels.Email, user.Email)
	if user.Phone != "" {
		field(w, labels.Phone, user.Phone)
	}
	if user.Role != "" {
		field(w, labels.Role, user.Role)
	}
	plan := labels.FreeTier
	if user.Tier == model.TierPro {
		plan = labels.ProTier
	}
	field(w, labels.CurrentPlan, plan)
}

// readPassword prompts for a password without echo
func readPassword(prompt string) (string, error) {
	rl, err := readline.New("")
	if err != nil {
		return "", goerr.Wrap(err, "failed to start prompt")
	}
	defer rl.Close()

	pw, err := rl.ReadPassword(prompt)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read password")
	}
	return string(pw), nil
}

func passwordFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "password",
		Usage:       "Password. Prompted if empty",
		Sources:     cli.EnvVars("AGRIAI_PASSWORD"),
		Destination: dst,
	}
}

func profileSimpleCommand(name, usage string, fn func(ctx context.Context, w io.Writer, e *env) error) *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx)
			e, err := cfg.open(ctx, c.Root().Writer)
			if err != nil {
				return err
			}
			defer e.close()
			return e.fail(ctx, fn(ctx, c.Root().Writer, e))
		},
	}
}

func profileRegisterCommand() *cli.Command {
	var (
		cfg                   config
		name, email, password string
	)

	flags := []cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "Full name", Required: true, Destination: &name},
		&cli.StringFlag{Name: "email", Usage: "Email address", Required: true, Destination: &email},
		passwordFlag(&password),
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "register",
		Usage: "Create an account",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx)
			w := c.Root().Writer
			e, err := cfg.open(ctx, w)
			if err != nil {
				return err
			}
			defer e.close()

			if password == "" {
				if password, err = readPassword("Password: "); err != nil {
					return err
				}
			}

			user, err := e.profile.Register(ctx, name, email, password)
			if err != nil {
				return e.fail(ctx, err)
			}
			printUser(w, e, user)
			return nil
		},
	}
}

func profileLoginCommand() *cli.Command {
	var (
		cfg             config
		email, password string
	)

	flags := []cli.Flag{
		&cli.StringFlag{Name: "email", Usage: "Email address", Required: true, Destination: &email},
		passwordFlag(&password),
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "login",
		Usage: "Log in",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx)
			w := c.Root().Writer
			e, err := cfg.open(ctx, w)
			if err != nil {
				return err
			}
			defer e.close()

			if password == "" {
				if password, err = readPassword("Password: "); err != nil {
					return err
				}
			}

			user, err := e.profile.Login(ctx, email, password)
			if err != nil {
				return e.fail(ctx, err)
			}
			printUser(w, e, user)
			return nil
		},
	}
}

func profileUpdateCommand() *cli.Command {
	var (
		cfg               config
		name, phone, role string
	)

	flags := []cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "Full name", Destination: &name},
		&cli.StringFlag{Name: "phone", Usage: "Phone number", Destination: &phone},
		&cli.StringFlag{Name: "role", Usage: "Role, e.g. Farmer", Destination: &role},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "update",
		Usage: "Update the profile of the logged-in user",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx)
			w := c.Root().Writer
			e, err := cfg.open(ctx, w)
			if err != nil {
				return err
			}
			defer e.close()

			user, err := e.profile.Update(ctx, name, phone, role)
			if err != nil {
				return e.fail(ctx, err)
			}
			fmt.Fprintln(w, e.locale.Labels.ProfileUpdated)
			printUser(w, e, user)
			return nil
		},
	}
}

func profileUpgradeCommand() *cli.Command {
	var (
		cfg           config
		transactionID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{Name: "transaction-id", Aliases: []string{"tx"}, Usage: "Payment transaction ID", Destination: &transactionID},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "upgrade",
		Usage: "Confirm a payment and upgrade to Pro",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx)
			w := c.Root().Writer
			e, err := cfg.open(ctx, w)
			if err != nil {
				return err
			}
			defer e.close()

			current, err := e.profile.Current(ctx)
			if err != nil {
				return e.fail(ctx, err)
			}
			if current == nil {
				return e.fail(ctx, model.Validation(model.CodeUserNotFound, "not logged in"))
			}

			if _, err := e.profile.ConfirmPayment(ctx, current.Email, strings.TrimSpace(transactionID)); err != nil {
				return e.fail(ctx, err)
			}
			fmt.Fprintln(w, e.locale.Labels.UpgradeSuccess)
			return nil
		},
	}
}
