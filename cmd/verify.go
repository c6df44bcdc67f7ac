package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the passphrase and audit content blob presence",
	Long: `Unlock the backup (proving the passphrase is correct) and check that a
content blob exists on disk for every regular file the manifest lists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := unlockSession()
		if err != nil {
			return err
		}
		defer sess.Close()

		checked, missing := 0, 0
		for _, rec := range sess.Manifest().All() {
			if !rec.IsRegularFile() || rec.Size == 0 {
				continue
			}
			checked++
			if !sess.Source().Exists(rec.FileID) {
				missing++
				fmt.Printf("missing   %s/%s (%s)\n", rec.Domain, rec.RelativePath, rec.FileID)
			}
		}

		fmt.Printf("passphrase ok, %d blobs checked, %d missing\n", checked, missing)
		if missing > 0 {
			return fmt.Errorf("%d content blobs missing", missing)
		}
		return nil
	},
}
