package cli

import (
	"database/sql"

	"github.com/honeynil/PaymentServiceTochka/internal/config"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DSN string
	// Open is replaced in tests.
	Open func(dsn string) (*sql.DB, error)
}

func (o *RootOptions) openDB() (*sql.DB, error) {
	dsn := o.DSN
	if dsn == "" {
		dsn = config.DatabaseDSN()
	}
	return o.Open(dsn)
}

func openPostgres(dsn string) (*sql.DB, error) {
	return sql.Open("postgres", dsn)
}

// NewRootCommand creates the root command for the paymentctl CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Open: openPostgres})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "paymentctl",
		Short:         "Administer the payment service",
		Long:          "Operator tooling for the payment service: schema migration and superadmin bootstrap.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "Postgres DSN (defaults to POSTGRES_DSN)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewCreateSuperadminCommand(opts))

	return cmd
}
