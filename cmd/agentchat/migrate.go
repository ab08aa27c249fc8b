package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, migrations, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			return st.Migrate(ctx, migrations)
		},
	}
}
