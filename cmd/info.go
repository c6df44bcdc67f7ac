package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show backup metadata without unlocking",
	RunE: func(cmd *cobra.Command, args []string) error {
		backup, err := openBackup()
		if err != nil {
			return err
		}
		info := backup.Info()

		fmt.Printf("Device:        %s (%s, %s)\n",
			info.Lockdown.DeviceName, info.Lockdown.ProductType, info.Lockdown.ProductVersion)
		if info.Lockdown.SerialNumber != "" {
			fmt.Printf("Serial:        %s\n", info.Lockdown.SerialNumber)
		}
		if !info.Date.IsZero() {
			fmt.Printf("Backup date:   %s\n", info.Date.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("Encrypted:     %v\n", info.IsEncrypted)
		fmt.Printf("Passcode set:  %v\n", info.WasPasscodeSet)
		return nil
	},
}
