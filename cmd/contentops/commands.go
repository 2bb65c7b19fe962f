package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"contentops/internal/api"
	"contentops/internal/export"
	"contentops/internal/logging"
	"contentops/internal/models"
	"contentops/internal/service"
	"contentops/internal/sheets"

	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree; cleanup releases whatever the executed
// command opened.
func newRootCmd() (root *cobra.Command, cleanup func()) {
	var a *app

	root = &cobra.Command{
		Use:           "contentops",
		Short:         "Content calendar sync and task tracking for the publishing dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = newApp(cmd.Context())
			return err
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	get := func() *app { return a }
	root.AddCommand(
		newPollCmd(get),
		newSyncCmd(get),
		newScheduleCmd(get),
		newRevokeCmd(get),
		newResyncCmd(get),
		newIntentsCmd(get),
		newPublishCmd(get),
		newUploadCmd(get),
		newExportCmd(get),
	)
	return root, func() {
		if a != nil {
			a.Close()
		}
	}
}

func newPollCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Narrate the tracked background task until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			ctx := cmd.Context()
			poller, err := a.newPoller(ctx)
			if err != nil {
				return err
			}
			if a.cfg.Monitoring.PrometheusEnabled {
				go startMetricsServer(ctx, a.cfg.Monitoring.PrometheusPort, logging.Component(a.logger, "metrics"))
			}
			return poller.Run(ctx)
		},
	}
}

func newSyncCmd(get func() *app) *cobra.Command {
	var (
		when   string
		revoke bool
	)
	cmd := &cobra.Command{
		Use:   "sync <drive-id> <platform>",
		Short: "Mirror one calendar entry onto its platform sheet without editing the calendar",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			platform, err := models.ParsePlatform(args[1])
			if err != nil {
				return fmt.Errorf("%q: %w", args[1], err)
			}

			calendar := sheets.NewTable(a.store, models.SheetCalendar, "id", a.locks, a.logger)
			_, raw, err := calendar.Find(ctx, args[0])
			if errors.Is(err, sheets.ErrNotFound) {
				return fmt.Errorf("%s: %w", args[0], service.ErrEntryNotFound)
			}
			if err != nil {
				return err
			}
			var entry models.CalendarEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return fmt.Errorf("decode calendar entry: %w", err)
			}

			scheduleTime := entry.ScheduleFor(platform)
			if when != "" {
				scheduleTime = service.NormalizeScheduleTime(when)
			}
			res, err := a.syncer.Sync(ctx, entry, platform, scheduleTime, revoke)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s position=%d\n", platform, res.Action, res.Position)
			return nil
		},
	}
	cmd.Flags().StringVar(&when, "time", "", "schedule time to write instead of the calendar value")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "delete the platform row")
	return cmd
}

func newScheduleCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <drive-id> <platform> <time>",
		Short: "Set a platform schedule on the calendar and sync it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent, err := get().scheduler.Schedule(cmd.Context(), args[0], args[1], args[2])
			if intent != nil {
				printIntent(cmd, intent)
			}
			return err
		},
	}
}

func newRevokeCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <drive-id> <platform>",
		Short: "Clear a platform schedule and delete the platform row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent, err := get().scheduler.Revoke(cmd.Context(), args[0], args[1])
			if intent != nil {
				printIntent(cmd, intent)
			}
			return err
		},
	}
}

func newResyncCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Replay failed syncs once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := get().scheduler.Resync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed=%d committed=%d failed=%d superseded=%d\n",
				report.Replayed, report.Committed, report.Failed, report.Superseded)
			return nil
		},
	}
}

func newIntentsCmd(get func() *app) *cobra.Command {
	var (
		status  string
		flagged bool
	)
	cmd := &cobra.Command{
		Use:   "intents",
		Short: "List the sync journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flagged {
				return printFlagged(cmd, get().scheduler)
			}
			intents, err := get().scheduler.Intents(cmd.Context(), status)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMEDIA\tPLATFORM\tACTION\tTIME\tSTATUS\tATTEMPTS\tERROR")
			for _, in := range intents {
				lastError := ""
				if in.LastError != nil {
					lastError = *in.LastError
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					in.ID, in.MediaDriveID, in.Platform, in.Action, in.ScheduleTime, in.Status, in.Attempts, lastError)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only list intents with this status")
	cmd.Flags().BoolVar(&flagged, "flagged", false, "list calendar entries whose last sync failed instead")
	return cmd
}

func newPublishCmd(get func() *app) *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "publish <sheet> <index>",
		Short: "Queue a publish job for one platform row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[1], err)
			}
			client, err := get().tasks()
			if err != nil {
				return err
			}
			resp, err := client.EnqueuePublish(cmd.Context(), args[0], index)
			if err != nil {
				return err
			}
			return followTask(cmd, get(), resp, noWait)
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return once the job is queued")
	return cmd
}

func newUploadCmd(get func() *app) *cobra.Command {
	var (
		req    api.UploadRequest
		noWait bool
	)
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Queue an upload of local files to the drive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := get().tasks()
			if err != nil {
				return err
			}
			req.Files = args
			resp, err := client.EnqueueUpload(cmd.Context(), req)
			if err != nil {
				return err
			}
			return followTask(cmd, get(), resp, noWait)
		},
	}
	cmd.Flags().StringVar(&req.ParentID, "parent", "", "drive folder that receives the upload")
	cmd.Flags().StringVar(&req.SheetID, "sheet-id", "", "spreadsheet the server records the media in")
	cmd.Flags().StringVar(&req.FolderName, "folder", "", "name of the folder to create")
	cmd.Flags().StringVar(&req.Topic, "topic", "", "content topic")
	cmd.Flags().StringVar(&req.Thumbnail, "thumbnail", "", "thumbnail image file")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return once the job is queued")
	return cmd
}

func newExportCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write an xlsx snapshot of the sheets and the sync journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			exp := export.NewExporter(a.store, a.journal, a.cfg.Exports.Path, logging.Component(a.logger, "export"))
			path, err := exp.Export(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// followTask records the queued job as the tracked task and, unless noWait,
// narrates it until it settles.
func followTask(cmd *cobra.Command, a *app, resp *models.EnqueueResponse, noWait bool) error {
	ctx := cmd.Context()
	poller, err := a.newPoller(ctx)
	if err != nil {
		return err
	}
	if err := poller.Track(ctx, resp.TaskID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued task %s\n", resp.TaskID)
	if noWait {
		return nil
	}

	task, err := poller.Wait(ctx, resp.TaskID)
	if err != nil {
		return err
	}
	if task.Status == models.TaskError {
		return fmt.Errorf("task %s failed: %s", task.ID, task.Message)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "task %s %s %s\n", task.ID, task.Status, task.PostID())
	return nil
}

func printIntent(cmd *cobra.Command, in *models.SyncIntent) {
	fmt.Fprintf(cmd.OutOrStdout(), "intent %s %s %s %s: %s\n", in.ID, in.Action, in.Platform, in.MediaDriveID, in.Status)
}


func printFlagged(cmd *cobra.Command, scheduler *service.Scheduler) error {
	entries, err := scheduler.FlaggedEntries(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MEDIA\tNAME\tFLAG")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.Name, e.ScripAction)
	}
	return w.Flush()
}

// exitCode is 2 when the task server rejected the request and 1 otherwise.
func exitCode(err error) int {
	if api.IsAPIError(err) {
		return 2
	}
	return 1
}
