package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goliatone/go-profilesync/command"
	"github.com/goliatone/go-profilesync/logging"
	"github.com/goliatone/go-profilesync/migrations"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/query"
	"github.com/goliatone/go-profilesync/seed"
	"github.com/goliatone/go-profilesync/store/bunstore"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var (
	ErrUserIDArgRequired = errors.New("USER_ID argument required")
	ErrPostIDArgRequired = errors.New("POST_ID argument required")
	ErrRoleArgsRequired  = errors.New("USER_ID and ROLE arguments required")
)

var cliActor = types.ActorRef{Type: "cli"}

func output(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func table(c *cli.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(output(c), 0, 0, 2, ' ', 0)
}

func userIDArg(c *cli.Command) (uuid.UUID, error) {
	if c.Args().Len() != 1 {
		return uuid.Nil, ErrUserIDArgRequired
	}
	userID, err := uuid.Parse(c.Args().First())
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid USER_ID: %w", err)
	}
	return userID, nil
}

func actorFlag(c *cli.Command) (types.ActorRef, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.String("actor")))
	if err != nil {
		return types.ActorRef{}, fmt.Errorf("invalid --actor: %w", err)
	}
	return types.ActorRef{ID: id, Type: "admin"}, nil
}

// handleMigrate applies pending migrations without wiring the service.
func handleMigrate(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File, Quiet: c.Root().Bool("quiet")})
	defer logger.Sync() //nolint:errcheck

	db, err := bunstore.Open(ctx, cfg.Database.Dialect, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	if applied == 0 {
		logger.Info("No new migrations to run (database is up to date)")
		return nil
	}
	logger.Info("Successfully migrated", zap.Int("applied", applied))
	return nil
}

func handleMigrateStatus(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := bunstore.Open(ctx, cfg.Database.Dialect, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := migrations.NewMigrator(db)
	if err != nil {
		return err
	}
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(output(c), "migrations: %s\nunapplied:  %s\nlast group: %s\n",
		ms.String(), ms.Unapplied().String(), ms.LastGroup().String())
	return nil
}

func handleCheckSchema(ctx context.Context, c *cli.Command, rt *runtime) error {
	checks := append([]migrations.SchemaCheck{migrations.ProfileSchemaCheck()},
		migrations.ChecksForCollections(rt.cfg.CollectionSpecs())...)
	err := migrations.ValidateSchema(ctx, rt.db.DB, migrations.DialectName(rt.db), migrations.WithSchemaChecks(checks))
	if err != nil {
		return err
	}
	fmt.Fprintln(output(c), "schema ok")
	return nil
}

func handleConfig(_ context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	w := table(c)
	fmt.Fprintln(w, "KEY\tVALUE\tSOURCE")
	for _, key := range cfg.Keys() {
		value := fmt.Sprint(cfg.Values[key])
		if key == "database.dsn" {
			value = redactDSN(value)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", key, value, cfg.Sources[key])
	}
	return w.Flush()
}

// redactDSN hides the password part of a URL-style DSN.
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPassword := strings.Cut(creds, ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":***@" + host
}

func handleSeed(ctx context.Context, c *cli.Command, rt *runtime) error {
	seeder, err := seed.New(seed.Config{
		Store:    rt.store,
		Profiles: rt.profiles,
		Seed:     c.Uint64("seed"),
		Logger:   rt.logger,
	})
	if err != nil {
		return err
	}
	opts := seed.DefaultOptions()
	opts.Users = int(c.Int("users"))
	opts.PostsPerUser = int(c.Int("posts"))
	opts.CommentsPerPost = int(c.Int("comments"))
	opts.LikesPerPost = int(c.Int("likes"))
	opts.MessagesPerUser = int(c.Int("messages"))
	opts.StaleRatio = c.Float64("stale")

	summary, err := seeder.Run(ctx, opts)
	if err != nil {
		return err
	}
	w := table(c)
	fmt.Fprintf(w, "users\t%d\nposts\t%d\ncomments\t%d\nlikes\t%d\nmessages\t%d\nnotifications\t%d\nlocations\t%d\nstale rows\t%d\n",
		summary.Users, summary.Posts, summary.Comments, summary.Likes, summary.Messages,
		summary.Notifications, summary.Locations, summary.Stale)
	return w.Flush()
}

func handleSync(ctx context.Context, c *cli.Command, rt *runtime) error {
	userID, err := userIDArg(c)
	if err != nil {
		return err
	}
	var result types.SyncResult
	if err := rt.svc.Commands().ProfileSync.Execute(ctx, command.ProfileSyncInput{
		UserID: userID,
		Actor:  cliActor,
		Result: &result,
	}); err != nil {
		return err
	}
	return printSyncResult(c, result)
}

func printSyncResult(c *cli.Command, result types.SyncResult) error {
	w := table(c)
	fmt.Fprintln(w, "COLLECTION\tUPDATED\tFAILED\tSTATUS")
	for _, outcome := range result.Collections {
		status := "ok"
		switch {
		case outcome.Skipped:
			status = "skipped: " + outcome.SkipReason
		case !outcome.Success:
			status = "error: " + outcome.Error
		case outcome.Failed > 0:
			status = "partial"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", outcome.Collection, outcome.Updated, outcome.Failed, status)
	}
	fmt.Fprintf(w, "total\t%d\t\t\n", result.TotalUpdated)
	if err := w.Flush(); err != nil {
		return err
	}
	if !result.Complete() {
		return fmt.Errorf("sync incomplete: %s", strings.Join(result.FailedCollections(), ", "))
	}
	return nil
}

func handleAudit(ctx context.Context, c *cli.Command, rt *runtime) error {
	userID, err := userIDArg(c)
	if err != nil {
		return err
	}
	report, err := rt.svc.Queries().Consistency.Query(ctx, query.ConsistencyQueryInput{UserID: userID})
	if err != nil {
		return err
	}
	return printAuditReport(c, report)
}

func printAuditReport(c *cli.Command, report types.AuditReport) error {
	w := table(c)
	fmt.Fprintln(w, "COLLECTION\tRECORD\tFIELD\tCURRENT\tEXPECTED")
	for _, coll := range report.Collections {
		if coll.Error != "" {
			fmt.Fprintf(w, "%s\t-\t-\terror: %s\t\n", coll.Collection, coll.Error)
			continue
		}
		for _, mismatch := range coll.Mismatches {
			fmt.Fprintf(w, "%s\t%s\t%s\t%q\t%q\n", coll.Collection, mismatch.RecordID, mismatch.Field, mismatch.Current, mismatch.Expected)
		}
	}
	fmt.Fprintf(w, "mismatches\t%d\t\t\t\n", report.TotalMismatches())
	return w.Flush()
}

func handleRepair(ctx context.Context, c *cli.Command, rt *runtime) error {
	userID, err := userIDArg(c)
	if err != nil {
		return err
	}
	var result command.RepairResult
	if err := rt.svc.Commands().ProfileRepair.Execute(ctx, command.ProfileRepairInput{
		UserID: userID,
		Actor:  cliActor,
		Result: &result,
	}); err != nil {
		return err
	}
	if err := printAuditReport(c, result.Report); err != nil {
		return err
	}
	if result.Sync == nil {
		fmt.Fprintln(output(c), "nothing to repair")
		return nil
	}
	return printSyncResult(c, *result.Sync)
}

func handleRetry(ctx context.Context, c *cli.Command, rt *runtime) error {
	retrier := rt.svc.Retrier()
	if retrier == nil {
		return fmt.Errorf("retry queue disabled (sync.journal = false)")
	}
	if !c.Bool("watch") {
		report, err := retrier.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(output(c), "attempted %d, succeeded %d, pending %d, gave up %d\n",
			report.Attempted, report.Succeeded, report.Pending, report.GaveUp)
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := c.String("metrics-addr"); addr != "" {
		server := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.zap.Error("Metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		rt.zap.Info("Serving metrics", zap.String("addr", addr))
	}

	rt.zap.Info("Retry worker started", zap.Duration("interval", c.Duration("interval")))
	err := retrier.Run(ctx, c.Duration("interval"))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func handleJournal(ctx context.Context, c *cli.Command, rt *runtime) error {
	filter := types.JournalFilter{Pagination: types.Pagination{Limit: int(c.Int("limit"))}}
	if raw := strings.TrimSpace(c.String("user")); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		filter.UserID = userID
	}
	for _, kind := range c.StringSlice("kind") {
		filter.Kinds = append(filter.Kinds, types.JournalKind(strings.TrimSpace(kind)))
	}
	if age := c.Duration("since"); age > 0 {
		since := time.Now().UTC().Add(-age)
		filter.Since = &since
	}

	w := table(c)
	if c.Bool("stats") {
		stats, err := rt.svc.Queries().JournalStats.Query(ctx, filter)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "KIND\tCOUNT")
		for _, kind := range []types.JournalKind{types.JournalKindSync, types.JournalKindAudit, types.JournalKindRepair, types.JournalKindRetry} {
			fmt.Fprintf(w, "%s\t%d\n", kind, stats.ByKind[kind])
		}
		fmt.Fprintf(w, "total\t%d\n", stats.Total)
		return w.Flush()
	}

	page, err := rt.svc.Queries().Journal.Query(ctx, filter)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "WHEN\tKIND\tUSER\tUPDATED\tFAILED\tCOMPLETE")
	for _, entry := range page.Entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%t\n",
			entry.OccurredAt.Format(time.RFC3339), entry.Kind, entry.UserID, entry.Updated, entry.Failed, entry.Complete)
	}
	if page.HasMore {
		fmt.Fprintf(w, "... %d total\t\t\t\t\t\n", page.Total)
	}
	return w.Flush()
}

func handleStats(ctx context.Context, c *cli.Command, rt *runtime) error {
	stats, err := rt.svc.Queries().DashboardStats.Query(ctx, query.DashboardStatsInput{})
	if err != nil {
		return err
	}
	w := table(c)
	fmt.Fprintf(w, "users\t%d\nadmins\t%d\nposts\t%d\ncomments\t%d\nlikes\t%d\ncaptured\t%s\n",
		stats.Users, stats.Admins, stats.Posts, stats.Comments, stats.Likes, stats.CapturedAt.Format(time.RFC3339))
	return w.Flush()
}

func handleTopPosts(ctx context.Context, c *cli.Command, rt *runtime) error {
	input := query.TopPostsInput{Limit: int(c.Int("limit"))}
	if age := c.Duration("since"); age > 0 {
		since := time.Now().UTC().Add(-age)
		input.Since = &since
	}
	rankings, err := rt.svc.Queries().TopPosts.Query(ctx, input)
	if err != nil {
		return err
	}
	w := table(c)
	fmt.Fprintln(w, "POST\tTITLE\tAUTHOR\tLIKES\tCOMMENTS")
	for _, ranking := range rankings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", ranking.Post.ID, ranking.Post.Title, ranking.Post.UserName, ranking.Likes, ranking.Comments)
	}
	return w.Flush()
}

func handleTopAuthors(ctx context.Context, c *cli.Command, rt *runtime) error {
	authors, err := rt.svc.Queries().TopAuthors.Query(ctx, query.TopAuthorsInput{Limit: int(c.Int("limit"))})
	if err != nil {
		return err
	}
	w := table(c)
	fmt.Fprintln(w, "USER\tNAME\tPOSTS\tLIKES")
	for _, author := range authors {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", author.UserID, author.DisplayName, author.Posts, author.LikesReceived)
	}
	return w.Flush()
}

func handleNearby(ctx context.Context, c *cli.Command, rt *runtime) error {
	userID, err := userIDArg(c)
	if err != nil {
		return err
	}
	nearby, err := rt.svc.Queries().NearbyUsers.Query(ctx, query.NearbyUsersInput{
		UserID:   userID,
		RadiusKm: c.Float64("radius"),
	})
	if err != nil {
		return err
	}
	w := table(c)
	fmt.Fprintln(w, "USER\tNAME\tDISTANCE")
	for _, user := range nearby {
		fmt.Fprintf(w, "%s\t%s\t%s\n", user.Profile.UserID, user.Profile.DisplayName, user.DistanceText)
	}
	return w.Flush()
}

func handleDeletePost(ctx context.Context, c *cli.Command, rt *runtime) error {
	if c.Args().Len() != 1 {
		return ErrPostIDArgRequired
	}
	actor, err := actorFlag(c)
	if err != nil {
		return err
	}
	var result command.AdminResult
	if err := rt.svc.Commands().PostDelete.Execute(ctx, command.PostDeleteInput{
		PostID: c.Args().First(),
		Actor:  actor,
		Result: &result,
	}); err != nil {
		return err
	}
	fmt.Fprintf(output(c), "removed %d documents\n", result.Removed)
	return nil
}

func handleSetRole(ctx context.Context, c *cli.Command, rt *runtime) error {
	if c.Args().Len() != 2 {
		return ErrRoleArgsRequired
	}
	userID, err := uuid.Parse(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid USER_ID: %w", err)
	}
	actor, err := actorFlag(c)
	if err != nil {
		return err
	}
	var updated types.UserProfile
	if err := rt.svc.Commands().RoleChange.Execute(ctx, command.RoleChangeInput{
		UserID: userID,
		Role:   c.Args().Get(1),
		Actor:  actor,
		Result: &updated,
	}); err != nil {
		return err
	}
	fmt.Fprintf(output(c), "%s is now %s\n", updated.UserID, updated.Role)
	return nil
}
