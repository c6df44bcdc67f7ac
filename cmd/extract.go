package cmd

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-mobilesync/internal/domains"
	"github.com/deploymenttheory/go-mobilesync/internal/managers/session"
)

var (
	extractName    string
	extractDomain  string
	extractPath    string
	extractPattern string
	extractAll     bool
	extractOut     string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Decrypt files to an output directory",
	Long: `Decrypt files from the backup into --out.

Select what to extract with exactly one of:
  --name      a well-known file (see --help for names)
  --path      a single file by domain and relative path
  --like      all files matching an SQL LIKE pattern
  --all       every file in the backup

Well-known names: ` + wellKnownNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := unlockSession()
		if err != nil {
			return err
		}
		defer sess.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		switch {
		case extractName != "":
			f, ok := domains.Lookup(extractName)
			if !ok {
				return fmt.Errorf("unknown well-known name %q; names: %s", extractName, wellKnownNames())
			}
			dest := filepath.Join(extractOut, filepath.Base(f.RelativePath))
			if err := sess.ExtractFile(f.Domain, f.RelativePath, dest); err != nil {
				return err
			}
			fmt.Printf("extracted %s\n", dest)
			return nil

		case extractPath != "":
			dest := filepath.Join(extractOut, filepath.Base(extractPath))
			if err := sess.ExtractFile(extractDomain, extractPath, dest); err != nil {
				return err
			}
			fmt.Printf("extracted %s\n", dest)
			return nil

		case extractPattern != "":
			results, err := sess.ExtractMatching(ctx, extractPattern, extractOut)
			if err != nil {
				return err
			}
			return reportResults(results)

		case extractAll:
			results, err := sess.ExtractAll(ctx, extractOut)
			if err != nil {
				return err
			}
			return reportResults(results)

		default:
			return fmt.Errorf("nothing selected: use --name, --path, --like, or --all")
		}
	},
}

func reportResults(results []session.ExtractResult) error {
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Printf("failed    %s/%s: %v\n", res.Record.Domain, res.Record.RelativePath, res.Err)
		}
	}
	fmt.Printf("%d extracted, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to extract", failed, len(results))
	}
	return nil
}

func wellKnownNames() string {
	names := ""
	for i, f := range domains.WellKnownFiles() {
		if i > 0 {
			names += ", "
		}
		names += f.Name
	}
	return names
}

func init() {
	extractCmd.Flags().StringVar(&extractName, "name", "", "well-known file to extract")
	extractCmd.Flags().StringVar(&extractDomain, "domain", domains.Home, "domain for --path lookups")
	extractCmd.Flags().StringVar(&extractPath, "path", "", "relative path of a single file to extract")
	extractCmd.Flags().StringVar(&extractPattern, "like", "", "SQL LIKE pattern of files to extract")
	extractCmd.Flags().BoolVar(&extractAll, "all", false, "extract every file in the backup")
	extractCmd.Flags().StringVar(&extractOut, "out", ".", "output directory")
}
