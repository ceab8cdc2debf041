package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-console/internal/api"
)

func newCacheCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cache [mutation...]",
		Short: "Print which cached reads each write invalidates",
		Long: `Print the invalidation table of the client's query cache: for each write
endpoint, the tags it marks stale. A write on a single record also
invalidates that record's own tag (shown as Kind:<id>).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				for name := range api.Mutations {
					names = append(names, name)
				}
				sort.Strings(names)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MUTATION\tINVALIDATES")
			for _, name := range names {
				m, ok := api.Mutations[name]
				if !ok {
					return fmt.Errorf("unknown mutation %q", name)
				}
				tags := make([]string, 0, len(m.Invalidates)+1)
				for _, tag := range m.Invalidates {
					tags = append(tags, tag.String())
				}
				if m.Kind != "" {
					tags = append(tags, m.Kind+":<id>")
				}
				fmt.Fprintf(tw, "%s\t%s\n", name, strings.Join(tags, ", "))
			}
			return tw.Flush()
		},
	}
}
