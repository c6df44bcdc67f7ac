package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-mobilesync/internal/types"
)

var (
	listDomain  string
	listPattern string
	listSummary bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List file records in the decrypted manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := unlockSession()
		if err != nil {
			return err
		}
		defer sess.Close()
		store := sess.Manifest()

		if listSummary {
			stats, err := store.TopDirectories()
			if err != nil {
				return err
			}
			for _, stat := range stats {
				dir := stat.Directory
				if dir == "" {
					dir = "."
				}
				fmt.Printf("%8d  %s/%s\n", stat.Count, stat.Domain, dir)
			}
			return nil
		}

		var records []*types.FileRecord
		switch {
		case listPattern != "":
			records, err = store.Matching(listPattern)
		case listDomain != "":
			records, err = store.InDomain(listDomain)
		default:
			records = store.All()
		}
		if err != nil {
			return err
		}

		for _, rec := range records {
			kind := "f"
			switch rec.Flags {
			case types.RecordFlagDirectory:
				kind = "d"
			case types.RecordFlagSymlink:
				kind = "l"
			}
			fmt.Printf("%s %10d  %s/%s\n", kind, rec.Size, rec.Domain, rec.RelativePath)
		}
		fmt.Printf("%d records\n", len(records))
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listDomain, "domain", "", "only records in this domain")
	listCmd.Flags().StringVar(&listPattern, "like", "", "only files whose relative path matches this SQL LIKE pattern")
	listCmd.Flags().BoolVar(&listSummary, "summary", false, "show per-domain top-directory record counts instead")
}
