package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	spectrus "github.com/clk-66/spectrus-go"
	"github.com/clk-66/spectrus-go/payload"
)

func newCommandsCommand(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmd"},
		Short:   "Manage the bot's application commands",
		Example: `  spectrus-bot commands list
  spectrus-bot commands register ping --description "Replies pong"
  spectrus-bot commands register echo --description "Echoes text" --string-option text
  spectrus-bot commands unregister 3f6c...`,
	}

	// connect bootstraps over REST only; no gateway is needed here.
	connect := func(cmd *cobra.Command) (*spectrus.Client, error) {
		cfg, logger, err := load()
		if err != nil {
			return nil, err
		}
		c, err := spectrus.New(cfg, spectrus.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := c.Initialize(cmd.Context()); err != nil {
			return nil, err
		}
		return c, nil
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tDESCRIPTION")
			for _, a := range c.Commands.Values() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", a.ID, a.Name, a.Type, a.Description)
			}
			return w.Flush()
		},
	}

	var (
		description   string
		commandType   int
		stringOptions []string
	)
	registerCmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register or overwrite a command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := payload.CommandOptions{
				Name:        args[0],
				Type:        payload.CommandType(commandType),
				Description: description,
			}
			for _, name := range stringOptions {
				opts.Options = append(opts.Options, payload.Option{
					Type:        payload.OptionString,
					Name:        name,
					Description: name,
				})
			}
			// Validate before touching the network.
			spec, err := payload.NewCommand(opts)
			if err != nil {
				return err
			}
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			a, err := c.RegisterCommand(cmd.Context(), spec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", a.Name, a.ID)
			return nil
		},
	}
	registerCmd.Flags().StringVarP(&description, "description", "d", "", "command description")
	registerCmd.Flags().IntVar(&commandType, "type", int(payload.ChatInputCommand), "1 chat input, 2 user, 3 message")
	registerCmd.Flags().StringSliceVar(&stringOptions, "string-option", nil, "add an optional string option (repeatable)")

	unregisterCmd := &cobra.Command{
		Use:   "unregister <id>",
		Short: "Delete a command by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			if err := c.UnregisterCommand(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unregistered %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, registerCmd, unregisterCmd)
	return cmd
}
