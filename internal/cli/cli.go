package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/forgevault/github-backup/internal/pipeline"
)

// Exit codes of the process.
const (
	ExitOK        = 0
	ExitConfig    = 1
	ExitPolicy    = 2
	ExitCancelled = 130
)

// Version is stamped at build time.
var Version = "dev"

// NewApp creates the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "github-backup",
		Usage:   "Back up GitHub repositories, gists, and release artifacts to the local filesystem",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "path to the backup policy file",
				Required: true,
				EnvVars:  []string{"GITHUB_BACKUP_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level for structured JSON output (debug, info, warn, error)",
				EnvVars: []string{"GITHUB_BACKUP_LOG_LEVEL"},
			},
			&cli.Int64Flag{
				Name:    "concurrency",
				Value:   pipeline.DefaultConcurrency,
				Usage:   "maximum concurrent backup operations per policy",
				EnvVars: []string{"GITHUB_BACKUP_CONCURRENCY"},
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "log what would be backed up without writing anything",
			},
		},
		Action: runCommand,
	}
}
