package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/factory"
	"github.com/warp/property-engine/property"
	"go.uber.org/zap"
)

// =============================================================================
// EXPORT
// =============================================================================

var exportOpts struct {
	output     string
	format     string
	from       string
	to         string
	properties []string
	types      []string
	statuses   []string
	search     string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the filtered event stream as ICS, or the source rows as JSON",
	Example: `  property-calendar export --from 2024-07-01 --to 2024-07-31 -o july.ics
  property-calendar export --format json --property p1 > maple.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if exportOpts.output != "" && exportOpts.output != "-" {
			f, err := os.Create(exportOpts.output)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		switch exportOpts.format {
		case "ics":
			return exportICS(cmd, a, out)
		case "json":
			d, err := factory.Export(cmd.Context(), a.store, property.Query{PropertyIDs: exportOpts.properties})
			if err != nil {
				return err
			}
			s, err := factory.NewRowFactory().ToJSON(d)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, s)
			return err
		}
		return fmt.Errorf("%w: unknown format %q (ics|json)", calendar.ErrInvalidInput, exportOpts.format)
	},
}

func exportICS(cmd *cobra.Command, a *app, out io.Writer) error {
	f, err := exportFilters()
	if err != nil {
		return err
	}
	events, err := a.calendar.GetEvents(cmd.Context(), f)
	if err != nil {
		return err
	}
	a.logger.Info("exporting events", zap.Int("events", len(events)), zap.String("window", a.calendar.Window(f).String()))
	return calendar.WriteICS(out, events, calendar.ICSOptions{
		ProductID: a.cfg.ICSProductID,
		Location:  a.calendar.Location(),
	})
}

func exportFilters() (calendar.Filters, error) {
	f := calendar.Filters{PropertyIDs: exportOpts.properties, Search: exportOpts.search}
	var err error
	if exportOpts.from != "" {
		if f.DateFrom, err = calendar.ParseDate(exportOpts.from); err != nil {
			return f, fmt.Errorf("--from: %w", err)
		}
	}
	if exportOpts.to != "" {
		if f.DateTo, err = calendar.ParseDate(exportOpts.to); err != nil {
			return f, fmt.Errorf("--to: %w", err)
		}
	}
	for _, s := range exportOpts.types {
		t, err := calendar.ParseEventType(s)
		if err != nil {
			return f, err
		}
		f.EventTypes = append(f.EventTypes, t)
	}
	for _, s := range exportOpts.statuses {
		st, err := calendar.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Statuses = append(f.Statuses, st)
	}
	return f, f.Validate()
}

// =============================================================================
// IMPORT
// =============================================================================

var importReset bool

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load a JSON row dump into the database (- reads stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var in io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		d, err := factory.NewRowFactory().Decode(in)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if importReset {
			if err := a.store.Reset(ctx); err != nil {
				return err
			}
		}
		if err := a.store.Import(ctx, d); err != nil {
			return err
		}

		res, err := a.calendar.Build(ctx, calendar.Filters{})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows, %d events, %d skipped\n",
			d.Rows(), len(res.Events), res.Stats.TotalSkipped())
		return nil
	},
}

// =============================================================================
// EVENT TYPES
// =============================================================================

var eventTypesCmd = &cobra.Command{
	Use:   "event-types",
	Short: "Print the event type registry after config overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := cfg.Registry()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tLABEL\tICON\tCOLOR\tBACKGROUND\tBORDER")
		for _, e := range reg.Entries() {
			c := e.Config
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Type, c.Label, c.Icon, c.Color, c.BackgroundColor, c.BorderColor)
		}
		return tw.Flush()
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOpts.output, "output", "o", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&exportOpts.format, "format", "ics", "ics or json")
	exportCmd.Flags().StringVar(&exportOpts.from, "from", "", "first date, YYYY-MM-DD")
	exportCmd.Flags().StringVar(&exportOpts.to, "to", "", "last date, YYYY-MM-DD")
	exportCmd.Flags().StringSliceVar(&exportOpts.properties, "property", nil, "property ids")
	exportCmd.Flags().StringSliceVar(&exportOpts.types, "type", nil, "event types ("+typeList()+")")
	exportCmd.Flags().StringSliceVar(&exportOpts.statuses, "status", nil, "statuses")
	exportCmd.Flags().StringVarP(&exportOpts.search, "query", "q", "", "search text")

	importCmd.Flags().BoolVar(&importReset, "reset", false, "delete every row before importing")
}

func typeList() string {
	types := calendar.AllEventTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
