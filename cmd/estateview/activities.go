package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/wesm/estateview/internal/analytics"
)

// activityFilter is the client-side predicate of the activities
// command.
type activityFilter struct {
	Type   string
	Status string
}

// parseActivityFilter parses shell-quoted key=value pairs such
// as `type="New Listing" status=Sold`. Keys are type and status;
// an omitted key or the value All disables that predicate.
func parseActivityFilter(expr string) (activityFilter, error) {
	var f activityFilter
	tokens, err := shlex.Split(expr)
	if err != nil {
		return f, fmt.Errorf("parsing filter: %w", err)
	}
	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return f, fmt.Errorf(
				"invalid filter term %q: want key=value", tok,
			)
		}
		switch strings.ToLower(key) {
		case "type":
			f.Type = value
		case "status":
			f.Status = value
		default:
			return f, fmt.Errorf(
				"unknown filter key %q: want type or status", key,
			)
		}
	}
	return f, nil
}

func newActivitiesCmd() *cobra.Command {
	var filters analytics.Filters
	cmd := &cobra.Command{
		Use:   "activities [filter]",
		Short: "Fetch and print the recent activity feed",
		Long: `Fetch the recent activity feed and print the records
matching a filter expression of type= and status= terms.

Examples:
  estateview activities
  estateview activities 'type="New Listing" status=Sold'
  estateview activities --location Lagos status=Available`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseActivityFilter(strings.Join(args, " "))
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			snap, err := fetchOnce(cmd.Context(), cfg, filters)
			if err != nil {
				return err
			}
			return printActivities(cmd.OutOrStdout(),
				snap.Activities, f)
		},
	}
	addFilterFlags(cmd, &filters)
	return cmd
}

func printActivities(
	w io.Writer, records []analytics.ActivityRecord,
	f activityFilter,
) error {
	matched := analytics.FilterActivities(records, f.Type, f.Status)
	if len(matched) == 0 {
		_, err := fmt.Fprintln(w, "No activities match the given filter.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tPROPERTY\tSTATUS\tADMIN\tDETAILS")
	for _, a := range matched {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.Timestamp, a.ActivityType, a.PropertyName,
			a.Status, a.AdminName, a.Description)
	}
	fmt.Fprintf(tw, "\n%d of %d activities\n", len(matched), len(records))
	return tw.Flush()
}
