package cmd

import (
	"fmt"
	"os"

	"github.com/howeyc/gopass"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-mobilesync/internal/managers/session"
)

var (
	cfgFile   string
	backupDir string
	verbose   bool
)

var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "mobilesync",
	Short: "Decrypt and extract encrypted local device backups",
	Long: `mobilesync is a read-only command-line tool for working with encrypted,
locally stored mobile device backups: it derives keys from the backup
passphrase, unwraps the protection-class keys from the keybag, decrypts
the manifest database, and extracts file contents.

Commands:
  info      Show backup metadata without unlocking
  list      List file records in the decrypted manifest
  extract   Decrypt files to an output directory
  manifest  Save the decrypted manifest database
  verify    Check the passphrase and audit content blob presence`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.mobilesync.yaml)")
	rootCmd.PersistentFlags().StringVarP(&backupDir, "backup", "b", "", "path to the backup directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().String("passphrase", "", "backup passphrase (prompted when omitted)")

	viper.BindPFlag("backup", rootCmd.PersistentFlags().Lookup("backup"))
	viper.BindPFlag("passphrase", rootCmd.PersistentFlags().Lookup("passphrase"))

	rootCmd.AddCommand(
		infoCmd,
		listCmd,
		extractCmd,
		manifestCmd,
		verifyCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".mobilesync")
		}
	}
	viper.SetEnvPrefix("MOBILESYNC")
	viper.AutomaticEnv()
	// A missing config file is fine; flags and env cover everything.
	_ = viper.ReadInConfig()

	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
}

// openBackup opens the configured backup directory without unlocking it.
func openBackup() (*session.Backup, error) {
	dir := viper.GetString("backup")
	if dir == "" {
		return nil, fmt.Errorf("no backup directory: use --backup or set it in the config file")
	}
	return session.Open(dir, logrus.NewEntry(log))
}

// unlockSession opens and unlocks the configured backup, prompting for the
// passphrase when it was not supplied by flag, env, or config file.
func unlockSession() (*session.Session, error) {
	backup, err := openBackup()
	if err != nil {
		return nil, err
	}

	passphrase := []byte(viper.GetString("passphrase"))
	if len(passphrase) == 0 {
		passphrase, err = gopass.GetPasswdPrompt("Backup passphrase: ", true, os.Stdin, os.Stderr)
		if err != nil {
			return nil, err
		}
	}
	return backup.Unlock(passphrase)
}
