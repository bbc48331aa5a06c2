package main

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/beacon-platform/beacon/cmd/beacond/config"
	"github.com/beacon-platform/beacon/storage"
)

var rootCmd = &cobra.Command{
	Use:   "beaconctl",
	Short: "beaconctl manages users and API tokens of a beacon device",
	Long:  "beaconctl manages users and API tokens of a beacon device",
}

var configFile string
var auth *storage.AuthStorage

func loadConfig() error {
	config.Load(configFile)
	c := config.Get()
	manager, err := storage.NewManager(c.Storage)
	if err != nil {
		return err
	}
	auth, err = storage.NewAuthStorage(manager, "", c.AuthConfig())
	if err != nil {
		return err
	}
	return auth.Initialize()
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		for _, u := range auth.AllUsers() {
			admin := ""
			if u.IsAdmin {
				admin = " (admin)"
			}
			fmt.Printf("%s  %s%s  created %s\n", u.ID, u.Username, admin, time.Unix(u.CreatedAt, 0).Format(time.RFC3339))
		}
		return nil
	},
}

var userAddCmd = &cobra.Command{
	Use:   "add <username> <password>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		id, err := auth.CreateUser(args[0], args[1], false)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <username> <password>",
	Short: "Set a user's password",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		user := auth.FindUserByUsername(args[0])
		if !user.IsValid() {
			return fmt.Errorf("no such user: %s", args[0])
		}
		if !auth.UpdateUserPassword(user.ID, args[1]) {
			return fmt.Errorf("password update failed")
		}
		return nil
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user and all of their sessions and tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		user := auth.FindUserByUsername(args[0])
		if !user.IsValid() {
			return fmt.Errorf("no such user: %s", args[0])
		}
		if !auth.DeleteUser(user.ID) {
			return fmt.Errorf("delete failed")
		}
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens",
}

var tokenListCmd = &cobra.Command{
	Use:   "list <username>",
	Short: "List a user's API tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		user := auth.FindUserByUsername(args[0])
		if !user.IsValid() {
			return fmt.Errorf("no such user: %s", args[0])
		}
		for _, t := range auth.TokensForUser(user.ID) {
			expiry := "never"
			if t.ExpiresAt > 0 {
				expiry = time.Unix(t.ExpiresAt, 0).Format(time.RFC3339)
			}
			fmt.Printf("%s  %s  expires %s\n", t.ID, t.Name, expiry)
		}
		return nil
	},
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create <username> <name> [expireInDays]",
	Short: "Create an API token; prints the token value once",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		user := auth.FindUserByUsername(args[0])
		if !user.IsValid() {
			return fmt.Errorf("no such user: %s", args[0])
		}
		days := 0
		if len(args) == 3 {
			var err error
			if days, err = strconv.Atoi(args[2]); err != nil {
				return fmt.Errorf("expireInDays must be a number")
			}
		}
		token, err := auth.CreateAPIToken(user.ID, args[1], days)
		if err != nil {
			return err
		}
		fmt.Println(token.Token)
		return nil
	},
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete <tokenId>",
	Short: "Delete an API token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		if !auth.DeleteAPIToken(args[0]) {
			return fmt.Errorf("no such token: %s", args[0])
		}
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired sessions, API tokens and page tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		fmt.Printf("removed %d expired records\n", auth.CleanupExpiredData())
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "the config file to use")
	userCmd.AddCommand(userListCmd, userAddCmd, userPasswdCmd, userDeleteCmd)
	tokenCmd.AddCommand(tokenListCmd, tokenCreateCmd, tokenDeleteCmd)
	rootCmd.AddCommand(userCmd, tokenCmd, cleanupCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
