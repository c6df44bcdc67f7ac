//go:build ignore

// Manual smoke test against a real backup directory. Not part of the build:
//
//	go run scripts/inspect_backup.go <backup-dir> <passphrase>
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-mobilesync/internal/managers/session"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: inspect_backup <backup-dir> <passphrase>")
		os.Exit(2)
	}

	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	fmt.Printf("=== Opening backup ===\n")
	backup, err := session.Open(os.Args[1], logrus.NewEntry(log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	info := backup.Info()
	fmt.Printf("✓ %s (%s %s), backed up %s\n",
		info.Lockdown.DeviceName, info.Lockdown.ProductType, info.Lockdown.ProductVersion, info.Date)

	fmt.Printf("=== Unlocking ===\n")
	sess, err := backup.Unlock([]byte(os.Args[2]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "unlock failed: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()
	fmt.Printf("✓ unlocked, %d records, keybag %s\n", sess.Manifest().Count(), sess.Keys().BackupUUID())
	fmt.Printf("  available classes: %v\n", sess.Keys().AvailableClasses())

	fmt.Printf("=== Top directories ===\n")
	stats, err := sess.Manifest().TopDirectories()
	if err != nil {
		fmt.Fprintf(os.Stderr, "summary failed: %v\n", err)
		os.Exit(1)
	}
	for _, stat := range stats {
		fmt.Printf("%8d  %s/%s\n", stat.Count, stat.Domain, stat.Directory)
	}
}
