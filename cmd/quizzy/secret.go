package main

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	tokens "github.com/ydethe/quizzy/internal/security/token"
)

func (c *cli) secretCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "secret", Short: "Secretos"}
	gen := &cobra.Command{
		Use:   "gen",
		Short: "Genera AES_SECRET, JWT_SECRET y COOKIE_SECRET en formato .env",
		Args:  cobra.NoArgs,
		// no necesita configuración
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range []string{"AES_SECRET", "JWT_SECRET", "COOKIE_SECRET"} {
				b, err := tokens.Random(32)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%s=%s\n", name, base64.StdEncoding.EncodeToString(b))
			}
			return nil
		},
	}
	cmd.AddCommand(gen)
	return cmd
}
