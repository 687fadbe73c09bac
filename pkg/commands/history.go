package commands

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/tocwex/slab-sub000/datastore"
	"github.com/tocwex/slab-sub000/pkg/commands/flags"
)

func newOperationsCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List the writes slab can perform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load(cmd, cfg)
			if err != nil {
				return err
			}
			if app.Operations == nil {
				return errors.New("no operation registry configured")
			}

			defs := app.Operations.Definitions()
			p := newPrinter(cmd)
			if ok, err := p.JSON(defs); ok {
				return err
			}
			rows := make([][]string, 0, len(defs))
			for _, d := range defs {
				rows = append(rows, []string{d.ID, d.Version.String(), d.Description})
			}
			p.table([]string{"Operation", "Version", "Description"}, rows)

			return nil
		},
	}
}

func newHistoryCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the writes slab performed, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := history(cmd, cfg)
			if err != nil {
				return err
			}

			reports, err := app.History.GetReports()
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}
			slices.Reverse(reports)
			if limit := flags.MustInt(cmd.Flags().GetInt("limit")); limit > 0 && len(reports) > limit {
				reports = reports[:limit]
			}

			p := newPrinter(cmd)
			if ok, err := p.JSON(reports); ok {
				return err
			}
			if len(reports) == 0 {
				p.line("no writes recorded")
				return nil
			}
			rows := make([][]string, 0, len(reports))
			for _, r := range reports {
				status := "ok"
				if r.Err != nil {
					status = r.Err.Message
				}
				rows = append(rows, []string{r.ID, timestamp(r.Timestamp), r.Def.ID, status})
			}
			p.table([]string{"Report", "Time", "Operation", "Status"}, rows)

			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Number of reports to show, 0 for all")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <report-id>",
		Short: "Show a recorded write with its input and output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := history(cmd, cfg)
			if err != nil {
				return err
			}

			r, err := app.History.GetReport(args[0])
			if err != nil {
				return err
			}

			// reports always render as JSON, their input and output have no fixed shape
			p := newPrinter(cmd)
			p.json = true
			_, err = p.JSON(r)

			return err
		},
	})

	return cmd
}

func history(cmd *cobra.Command, cfg Config) (*App, error) {
	app, err := load(cmd, cfg)
	if err != nil {
		return nil, err
	}
	if app.History == nil {
		return nil, errors.New("no history configured")
	}

	return app, nil
}

func timestamp(t *time.Time) string {
	if t == nil {
		return "-"
	}

	return t.Local().Format(time.DateTime)
}

func newConfigCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Settings == nil {
				return errors.New("configuration printing is not available")
			}

			out, err := cfg.Settings(flags.MustString(cmd.Flags().GetString("config")))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)

			return nil
		},
	}
}

func newDatastoreCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "datastore",
		Short: "Export the known tokens and created Safes as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load(cmd, cfg)
			if err != nil {
				return err
			}
			if app.Store == nil {
				return errors.New("no datastore configured")
			}

			return datastore.ExportYAML(cmd.OutOrStdout(), app.Store.Seal())
		},
	}
}
