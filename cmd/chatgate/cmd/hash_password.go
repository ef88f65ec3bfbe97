package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chat-gate/chatgate/internal/domain/user"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Hash a password with Argon2id",
	Long: `Hash a password with Argon2id, in PHC string format.

Useful for seeding accounts out of band. The password is checked against
the same strength policy registration enforces.

Example:
  chatgate hash-password "Str0ng!pass"

Security note: The password will appear in shell history.
Consider using an environment variable:
  chatgate hash-password "$MY_PASSWORD"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := args[0]
		if err := user.ValidatePassword(password); err != nil {
			return err
		}
		hash, err := user.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
