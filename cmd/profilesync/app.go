package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "profilesync",
		Usage: "Keep denormalized profile fields consistent across content collections",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file",
				Sources: cli.EnvVars("PROFILESYNC_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "dialect",
				Usage: "Database dialect (sqlite or postgres)",
			},
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "Database connection string",
				Sources: cli.EnvVars("PROFILESYNC_DSN"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write JSON logs to this rotated file",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Disable console logging",
			},
			&cli.BoolFlag{
				Name:  "auto-migrate",
				Usage: "Apply pending migrations before running the command",
			},
			&cli.BoolFlag{
				Name:  "no-fanout",
				Usage: "Disable profile fan-out on saves",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run pending migrations",
				Action: handleMigrate,
			},
			{
				Name:   "migrate-status",
				Usage:  "Show migration status",
				Action: handleMigrateStatus,
			},
			{
				Name:   "check-schema",
				Usage:  "Verify tables expose every column the sync layer touches",
				Action: withRuntime(handleCheckSchema),
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration and where each value came from",
				Action: handleConfig,
			},
			{
				Name:  "seed",
				Usage: "Generate fake users and content",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "users", Aliases: []string{"u"}, Value: 10, Usage: "Number of users"},
					&cli.IntFlag{Name: "posts", Value: 3, Usage: "Posts per user"},
					&cli.IntFlag{Name: "comments", Value: 2, Usage: "Comments per post"},
					&cli.IntFlag{Name: "likes", Value: 3, Usage: "Likes per post"},
					&cli.IntFlag{Name: "messages", Value: 2, Usage: "Messages per user"},
					&cli.Float64Flag{Name: "stale", Value: 0, Usage: "Fraction of rows written with an outdated author name"},
					&cli.Uint64Flag{Name: "seed", Usage: "Random seed for reproducible data"},
				},
				Action: withRuntime(handleSeed),
			},
			{
				Name:      "sync",
				Usage:     "Re-propagate a user's canonical profile to every copy",
				ArgsUsage: "USER_ID",
				Action:    withRuntime(handleSync),
			},
			{
				Name:      "audit",
				Usage:     "Report stale denormalized copies for a user",
				ArgsUsage: "USER_ID",
				Action:    withRuntime(handleAudit),
			},
			{
				Name:      "repair",
				Usage:     "Audit a user and sync only the drifted fields",
				ArgsUsage: "USER_ID",
				Action:    withRuntime(handleRepair),
			},
			{
				Name:  "retry",
				Usage: "Replay failed collection fan-outs from the retry queue",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Keep polling the queue"},
					&cli.DurationFlag{Name: "interval", Value: 30 * time.Second, Usage: "Polling interval in watch mode"},
					&cli.StringFlag{Name: "metrics-addr", Usage: "Serve Prometheus metrics on this address in watch mode"},
				},
				Action: withRuntime(handleRetry),
			},
			{
				Name:  "journal",
				Usage: "List sync journal entries",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "Only entries for this user id"},
					&cli.StringSliceFlag{Name: "kind", Usage: "Only entries of these kinds (sync, audit, repair, retry)"},
					&cli.DurationFlag{Name: "since", Usage: "Only entries newer than this age"},
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Page size"},
					&cli.BoolFlag{Name: "stats", Usage: "Print counts by kind instead of entries"},
				},
				Action: withRuntime(handleJournal),
			},
			{
				Name:   "stats",
				Usage:  "Print dashboard totals",
				Action: withRuntime(handleStats),
			},
			{
				Name:  "top-posts",
				Usage: "Rank posts by likes",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 10, Usage: "Number of posts"},
					&cli.DurationFlag{Name: "since", Usage: "Only posts newer than this age"},
				},
				Action: withRuntime(handleTopPosts),
			},
			{
				Name:  "top-authors",
				Usage: "Rank authors by likes received",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 10, Usage: "Number of authors"},
				},
				Action: withRuntime(handleTopAuthors),
			},
			{
				Name:      "nearby",
				Usage:     "List users near a user's last shared location",
				ArgsUsage: "USER_ID",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "radius", Usage: "Search radius in km (defaults to location.default_radius_km)"},
				},
				Action: withRuntime(handleNearby),
			},
			{
				Name:      "delete-post",
				Usage:     "Delete a post with its likes and comments",
				ArgsUsage: "POST_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "actor", Required: true, Usage: "Admin user id performing the delete"},
				},
				Action: withRuntime(handleDeletePost),
			},
			{
				Name:      "set-role",
				Usage:     "Change a user's role",
				ArgsUsage: "USER_ID ROLE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "actor", Required: true, Usage: "Admin user id performing the change"},
				},
				Action: withRuntime(handleSetRole),
			},
		},
	}
}
