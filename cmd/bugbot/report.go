package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Jack-Gledhill/bugbot/internal/bot"
	"github.com/Jack-Gledhill/bugbot/internal/db"
	"github.com/Jack-Gledhill/bugbot/internal/report"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect and moderate reports",
	}

	cmd.AddCommand(newReportListCmd())
	cmd.AddCommand(newReportShowCmd())
	cmd.AddCommand(newReportLockCmd(true))
	cmd.AddCommand(newReportLockCmd(false))
	cmd.AddCommand(newReportForceCmd())
	return cmd
}

func newReportListCmd() *cobra.Command {
	var (
		configPath string
		state      string
		board      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportList(cmd, configPath, state, board, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to bugbot config file")
	cmd.Flags().StringVar(&state, "state", "", "filter by state (open, approved, denied)")
	cmd.Flags().StringVar(&board, "board", "", "filter by board channel id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum reports to list")
	return cmd
}

func runReportList(cmd *cobra.Command, configPath, state, board string, limit int) error {
	filters := report.ListFilters{BoardID: board, Limit: limit}
	if state != "" {
		s, err := report.ParseState(state)
		if err != nil {
			return err
		}
		filters.State = &s
	}

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	coord, err := newCoordinator(cfg, gormDB)
	if err != nil {
		return err
	}

	reports, err := coord.List(cmd.Context(), filters)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(reports) == 0 {
		fmt.Fprintln(out, "No reports found.")
		return nil
	}

	shortWidth := 60
	if w := terminalWidth(out); w > 0 {
		shortWidth = max(20, w-60)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tBOARD\tSTANCES\tCREATED\tSHORT")
	for _, r := range reports {
		st := r.State.String()
		if r.Locked {
			st += " (locked)"
		}
		fmt.Fprintf(tw, "#%d\t%s\t%s\t+%d/-%d\t%s\t%s\n",
			r.ID, st, r.BoardID, r.Count(report.Approve), r.Count(report.Deny),
			r.CreatedAt.Format("2006-01-02"), truncate(r.Short, shortWidth))
	}
	return tw.Flush()
}

func newReportShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a report in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to bugbot config file")
	return cmd
}

func runReportShow(cmd *cobra.Command, configPath, arg string) error {
	id, err := parseReportID(arg)
	if err != nil {
		return err
	}
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	coord, err := newCoordinator(cfg, gormDB)
	if err != nil {
		return err
	}

	r, err := coord.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), r)
	return nil
}

func printReport(out io.Writer, r *report.Report) {
	lock := ""
	if r.Locked {
		lock = ", locked"
	}
	fmt.Fprintf(out, "Report #%d: %s\n", r.ID, r.Short)
	fmt.Fprintf(out, "State:     %s%s\n", r.State, lock)
	fmt.Fprintf(out, "Reporter:  %s\n", r.ReporterID)
	fmt.Fprintf(out, "Board:     %s\n", r.BoardID)
	fmt.Fprintf(out, "Created:   %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
	if r.Issue != nil {
		fmt.Fprintf(out, "Issue:     #%d %s\n", r.Issue.ID, r.Issue.URL)
	}
	fmt.Fprintln(out, "\nSteps to reproduce:")
	for i, s := range r.Steps {
		fmt.Fprintf(out, "  %d. %s\n", i+1, s)
	}
	fmt.Fprintf(out, "\nExpected: %s\nActual:   %s\nSoftware: %s\n", r.Expected, r.Actual, r.Software)

	if n := r.Count(report.Approve) + r.Count(report.Deny); n > 0 {
		fmt.Fprintln(out, "\nStances:")
		for _, s := range r.Approvals() {
			fmt.Fprintf(out, "  + %s: %s\n", s.Reviewer, s.Text)
		}
		for _, s := range r.Denials() {
			fmt.Fprintf(out, "  - %s: %s\n", s.Reviewer, s.Text)
		}
	}
	printEntries(out, "Attachments", r.Attachments)
	printEntries(out, "Notes", r.Notes)
}

func printEntries(out io.Writer, title string, entries []report.Entry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s:\n", title)
	for _, e := range entries {
		fmt.Fprintf(out, "  %s: %s\n", e.Author, e.Content)
	}
}

func newReportLockCmd(lock bool) *cobra.Command {
	var configPath string
	use, short := "lock <id>", "Freeze a report"
	if !lock {
		use, short = "unlock <id>", "Unfreeze a report"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportLock(cmd, configPath, args[0], lock)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to bugbot config file")
	return cmd
}

func runReportLock(cmd *cobra.Command, configPath, arg string, lock bool) error {
	id, err := parseReportID(arg)
	if err != nil {
		return err
	}
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	coord, err := newCoordinator(cfg, gormDB)
	if err != nil {
		return err
	}

	verb := "Locked"
	if lock {
		_, err = coord.Lock(cmd.Context(), id)
	} else {
		verb = "Unlocked"
		_, err = coord.Unlock(cmd.Context(), id)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s report #%d\n", verb, id)
	return nil
}

func newReportForceCmd() *cobra.Command {
	var (
		configPath  string
		actor       string
		reason      string
		guild       string
		skipEffects bool
	)

	cmd := &cobra.Command{
		Use:   "force <approve|deny> <id>",
		Short: "Force a report to approved or denied",
		Long: `Applies a forced stance, moving the report straight to its terminal state.

The Discord and GitHub effects of the transition run as they would for an
in-chat force command unless --skip-effects is set. --guild is needed for
the reward role to be granted on approval.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportForce(cmd, configPath, args[0], args[1], actor, reason, guild, skipEffects)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to bugbot config file")
	cmd.Flags().StringVar(&actor, "as", "", "Discord user id recorded as the reviewer (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "stance text (required)")
	cmd.Flags().StringVar(&guild, "guild", "", "guild id for the reward role")
	cmd.Flags().BoolVar(&skipEffects, "skip-effects", false, "commit the transition without Discord or GitHub effects")
	cmd.MarkFlagRequired("as")
	cmd.MarkFlagRequired("reason")
	return cmd
}

func runReportForce(cmd *cobra.Command, configPath, direction, arg, actor, reason, guild string, skipEffects bool) error {
	var p report.Polarity
	switch strings.ToLower(direction) {
	case "approve":
		p = report.Approve
	case "deny":
		p = report.Deny
	default:
		return fmt.Errorf("direction must be approve or deny, got %q", direction)
	}
	id, err := parseReportID(arg)
	if err != nil {
		return err
	}

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	coord, err := newCoordinator(cfg, gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	outcome, err := coord.Cast(cmd.Context(), id, actor, p, reason, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Report #%d is now %s\n", id, outcome.Transition.To)
	if skipEffects {
		return nil
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}
	b, err := bot.New(bot.Opts{Config: cfg, Coordinator: coord, Notifier: notifier, Out: out})
	if err != nil {
		return err
	}
	if errs := b.ApplyTransition(cmd.Context(), *outcome.Transition, guild); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", e)
		}
		return fmt.Errorf("%d effect(s) failed for report #%d", len(errs), id)
	}
	return nil
}

func parseReportID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid report id %q", s)
	}
	return id, nil
}

// terminalWidth returns the width of out when it is a terminal, else 0.
func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
