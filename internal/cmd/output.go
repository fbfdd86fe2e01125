package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"fieldparty/pkg/domain"

	"github.com/spf13/cobra"
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printParties(cmd *cobra.Command, parties []domain.Party) error {
	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "ID\tVERSION\tLEADER\tMEMBERS\tSHARED")
	for _, p := range parties {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\n", p.ID, p.Version, p.LeaderID, p.Members.Len(), len(p.SharedItems))
	}
	return tw.Flush()
}

func printRoutes(cmd *cobra.Command, routes []domain.Route) error {
	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "ID\tVERSION\tAUTHOR\tNAME\tWAYPOINTS\tACTIVE\tCOMPLETED")
	for _, r := range routes {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Version, r.AuthorID, r.Name, len(r.Waypoints), r.ActiveUsers.Len(), strconv.FormatBool(r.Completed))
	}
	return tw.Flush()
}

func userIDs(ids []domain.UserID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}
