package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/meltforce/repstack/internal/client"
	"github.com/spf13/cobra"
)

var (
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Run and review workout sessions",
	}
	sessionStartCmd = &cobra.Command{
		Use:   "start [template-id]",
		Short: "Start a session from a template snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionStart,
	}
	sessionLogCmd = &cobra.Command{
		Use:   "log [session-item-id] [reps] [weight-kg]",
		Short: "Log one set; queued locally if the server is unreachable",
		Args:  cobra.ExactArgs(3),
		RunE:  runSessionLog,
	}
	sessionFinishCmd = &cobra.Command{
		Use:   "finish [session-id]",
		Short: "Finish a session and compute totals",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionFinish,
	}
	sessionListCmd = &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		RunE:  runSessionList,
	}
	sessionShowCmd = &cobra.Command{
		Use:   "show [session-id]",
		Short: "Show a session's frozen plan and logged sets",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionShow,
	}
	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Deliver sets queued while offline",
		RunE:  runSync,
	}

	sessionLimit int
)

func init() {
	sessionListCmd.Flags().IntVar(&sessionLimit, "limit", 20, "maximum sessions to list")
	sessionCmd.AddCommand(sessionStartCmd, sessionLogCmd, sessionFinishCmd,
		sessionListCmd, sessionShowCmd)
	rootCmd.AddCommand(sessionCmd, syncCmd)
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	c, err := api()
	if err != nil {
		return err
	}
	templateID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid template id: %w", err)
	}
	sessionID, err := c.StartSession(cmd.Context(), templateID)
	if err != nil {
		return err
	}
	fmt.Println(sessionID)
	return nil
}

func runSessionLog(cmd *cobra.Command, args []string) error {
	itemID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session item id: %w", err)
	}
	reps, err := strconv.Atoi(args[1])
	if err != nil || reps <= 0 {
		return fmt.Errorf("reps must be a positive integer")
	}
	weight, err := strconv.ParseFloat(args[2], 64)
	if err != nil || weight < 0 {
		return fmt.Errorf("weight must be a non-negative number")
	}

	c, err := api()
	if err != nil {
		return err
	}
	set, err := c.LogSet(cmd.Context(), itemID, reps, weight)
	if err == nil {
		fmt.Printf("set %d: %d reps @ %.1fkg\n", set.SetNumber, set.Reps, set.WeightKg)
		return nil
	}
	// Permanent rejections are real errors; anything else (typically the
	// server being unreachable mid-workout) goes to the offline queue.
	if errors.Is(err, client.ErrNotFound) || errors.Is(err, client.ErrConflict) {
		return err
	}

	queue, qerr := client.OpenSetQueue(stateDir)
	if qerr != nil {
		return fmt.Errorf("server unreachable and queue unavailable: %w", qerr)
	}
	defer queue.Close()
	if qerr := queue.Enqueue(itemID, reps, weight); qerr != nil {
		return fmt.Errorf("server unreachable and enqueue failed: %w", qerr)
	}
	fmt.Printf("server unreachable; set queued locally (run 'repstack sync' later)\n")
	return nil
}

func runSessionFinish(cmd *cobra.Command, args []string) error {
	c, err := api()
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	if err := c.FinishSession(cmd.Context(), sessionID); err != nil {
		return err
	}
	detail, err := c.GetSession(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("%s finished: %d sets, %d reps, %.1fkg total volume\n",
		detail.Name, detail.TotalSets, detail.TotalReps, detail.TotalVolumeKg)
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	c, err := api()
	if err != nil {
		return err
	}
	sessions, err := c.ListSessions(cmd.Context(), sessionLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTARTED\tSETS\tVOLUME")
	for _, s := range sessions {
		state := "open"
		if s.FinishedAt != nil {
			state = fmt.Sprintf("%d sets, %.0fkg", s.TotalSets, s.TotalVolumeKg)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.Name, s.StartedAt.Format("2006-01-02 15:04"), s.TotalSets, state)
	}
	return w.Flush()
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	c, err := api()
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	detail, err := c.GetSession(cmd.Context(), sessionID)
	if err != nil {
		return err
	}

	fmt.Printf("%s  started %s\n", detail.Name, detail.StartedAt.Format("2006-01-02 15:04"))
	if detail.FinishedAt != nil {
		fmt.Printf("finished %s: %d sets, %d reps, %.1fkg\n",
			detail.FinishedAt.Format("15:04"), detail.TotalSets, detail.TotalReps, detail.TotalVolumeKg)
	}
	for _, g := range detail.Groups {
		fmt.Printf("  %s [%s, rest %ds]\n", g.Name, g.Kind, g.RestSeconds)
		for _, it := range g.Items {
			fmt.Printf("    %s  target %dx%d @ %.1fkg  (%s)\n",
				it.ExerciseName, it.TargetSets, it.TargetReps, it.TargetWeightKg, it.ID)
			for _, set := range it.Sets {
				fmt.Printf("      set %d: %d reps @ %.1fkg\n", set.SetNumber, set.Reps, set.WeightKg)
			}
		}
	}
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	c, err := api()
	if err != nil {
		return err
	}
	queue, err := client.OpenSetQueue(stateDir)
	if err != nil {
		return err
	}
	defer queue.Close()

	sent, err := queue.Flush(cmd.Context(), c)
	if err != nil {
		return fmt.Errorf("delivered %d sets before failing: %w", sent, err)
	}
	fmt.Printf("delivered %d queued sets\n", sent)
	return nil
}
