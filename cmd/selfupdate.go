package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/creativeprojects/pop3/term"
	"github.com/spf13/cobra"
)

const (
	devVersion    = "dev"
	releaseOwner  = "creativeprojects"
	releaseRepo   = "pop3"
	detectTimeout = 30 * time.Second
)

var errDevBuild = errors.New("a development build cannot be updated, install a release first")

var selfUpdateCmd = &cobra.Command{
	Use:   "selfupdate",
	Short: "Update the pop3 binary to the latest release published on GitHub",
	RunE:  runSelfUpdate,
}

var selfUpdateFlags struct {
	check bool
}

var (
	appVersion = devVersion
	appCommit  = ""
	appDate    = ""
	appBuiltBy = ""
)

func init() {
	rootCmd.AddCommand(selfUpdateCmd)
	selfUpdateCmd.Flags().BoolVar(&selfUpdateFlags.check, "check", false, "only check whether a newer release is available")
}

func setApp(version, commit, date, builtBy string) {
	if version != "" {
		appVersion = version
	}
	appCommit = commit
	appDate = date
	appBuiltBy = builtBy
}

// versionInfo is displayed by --version
func versionInfo() string {
	info := []string{appVersion}
	if appCommit != "" {
		info = append(info, "commit "+appCommit)
	}
	if appDate != "" {
		info = append(info, "built "+appDate)
	}
	if appBuiltBy != "" {
		info = append(info, "by "+appBuiltBy)
	}
	return fmt.Sprintf("%s (%s/%s)", strings.Join(info, " "), runtime.GOOS, runtime.GOARCH)
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	if appVersion == devVersion && !selfUpdateFlags.check {
		return errDevBuild
	}
	if global.verbose {
		selfupdate.SetLogger(term.Logger{})
	}
	// only filters return an error
	updater, _ := selfupdate.NewUpdater(selfupdate.Config{
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: "checksums.txt"},
	})

	latest, found, err := detectLatest(updater)
	if err != nil {
		return fmt.Errorf("unable to detect latest version: %w", err)
	}
	if !found {
		return fmt.Errorf("no pop3 release found for %s/%s", runtime.GOOS, runtime.GOARCH)
	}
	if appVersion != devVersion && latest.LessOrEqual(appVersion) {
		term.Infof("pop3 %s is up to date", appVersion)
		return nil
	}
	if selfUpdateFlags.check {
		term.Infof("pop3 %s is available (current version %s), published %s", latest.Version(), appVersion, latest.PublishedAt.Format("2006-01-02"))
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return errors.New("could not locate executable path")
	}
	term.Infof("updating pop3 %s to %s...", appVersion, latest.Version())
	if err := updater.UpdateTo(context.Background(), latest, exe); err != nil {
		return fmt.Errorf("unable to update binary: %w", err)
	}
	term.Infof("pop3 updated to %s", latest.Version())
	return nil
}

func detectLatest(updater *selfupdate.Updater) (*selfupdate.Release, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), detectTimeout)
	defer cancel()

	return updater.DetectLatest(ctx, selfupdate.NewRepositorySlug(releaseOwner, releaseRepo))
}
