package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/abduss/imagehost/internal/auth"
	"github.com/abduss/imagehost/internal/config"
	"github.com/spf13/cobra"
)

func newHashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash for IMAGEHOST_ADMIN_PASSWORD_HASH",
		Long:  "Print the bcrypt hash for IMAGEHOST_ADMIN_PASSWORD_HASH. Without an argument the password is read from the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("cost") {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cost = cfg.Auth.BcryptCost
			}

			password, err := readPassword(cmd, args)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password, cost)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}

	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (default IMAGEHOST_AUTH_BCRYPT_COST)")
	return cmd
}

func readPassword(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("empty password")
	}
	return line, nil
}
