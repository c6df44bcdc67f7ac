package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var manifestOut string

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Save the decrypted manifest database",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := unlockSession()
		if err != nil {
			return err
		}
		defer sess.Close()

		if err := sess.SaveManifest(manifestOut); err != nil {
			return err
		}
		fmt.Printf("decrypted manifest written to %s (%d records)\n", manifestOut, sess.Manifest().Count())
		return nil
	},
}

func init() {
	manifestCmd.Flags().StringVar(&manifestOut, "out", "Manifest.db", "where to write the decrypted database")
}
