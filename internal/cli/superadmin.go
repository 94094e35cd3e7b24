package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/honeynil/PaymentServiceTochka/internal/models"
	repository "github.com/honeynil/PaymentServiceTochka/internal/repository/postgres"
	service "github.com/honeynil/PaymentServiceTochka/internal/services"
	"github.com/spf13/cobra"
)

type superadminOptions struct {
	name  string
	email string
}

// NewCreateSuperadminCommand provisions the first superadmin. The password is
// read from the first line of stdin so it never appears in argv.
func NewCreateSuperadminCommand(opts *RootOptions) *cobra.Command {
	sa := &superadminOptions{}

	cmd := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create a superadmin principal (password read from stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			db, err := opts.openDB()
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			svc := service.NewAuthService(repository.NewPostgresPrincipalRepository(db), nil)
			p, err := svc.CreatePrincipal(cmd.Context(), service.CreatePrincipalRequest{
				Name:     sa.name,
				Email:    sa.email,
				Password: password,
				Role:     string(models.RoleSuperadmin),
			})
			if err != nil {
				return fmt.Errorf("failed to create superadmin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created superadmin %s (%s)\n", p.Email, p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&sa.name, "name", "", "display name")
	cmd.Flags().StringVar(&sa.email, "email", "", "login email")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")

	return cmd
}

func readPassword(cmd *cobra.Command) (string, error) {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		return "", fmt.Errorf("password is empty")
	}
	return line, nil
}
