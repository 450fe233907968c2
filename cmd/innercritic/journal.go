package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/r3d91ll/innercritic/internal/journal"
)

var (
	journalDate string
	statsDays   int
	statsItem   string
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Daily relative tracking and reflections",
}

var journalRateCmd = &cobra.Command{
	Use:   "rate <item> <better|same|worse>",
	Short: "Rate an item compared to yesterday",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournal(cmd, func(j *journal.Store) error {
			r, err := journal.ParseRating(args[1])
			if err != nil {
				return err
			}
			e, err := j.SetTracking(cmd.Context(), dateOrToday(j), args[0], r)
			if err != nil {
				return err
			}
			printEntry(os.Stdout, j, e)
			return nil
		})
	},
}

var journalReflectCmd = &cobra.Command{
	Use:   "reflect <prompt-id> <answer...>",
	Short: "Answer a reflection prompt",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournal(cmd, func(j *journal.Store) error {
			e, err := j.SetReflection(cmd.Context(), dateOrToday(j), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printEntry(os.Stdout, j, e)
			return nil
		})
	},
}

var journalNoteCmd = &cobra.Command{
	Use:   "note <text...>",
	Short: "Set the day's notes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournal(cmd, func(j *journal.Store) error {
			e, err := j.SetNotes(cmd.Context(), dateOrToday(j), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printEntry(os.Stdout, j, e)
			return nil
		})
	},
}

var journalShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a day's entry and what is left to fill in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withJournal(cmd, func(j *journal.Store) error {
			date := dateOrToday(j)
			e, ok := j.EntryByDate(date)
			if !ok {
				e = journal.Entry{Date: date}
			}
			printEntry(os.Stdout, j, e)
			return nil
		})
	},
}

var journalStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Streak, trend and cumulative progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withJournal(cmd, func(j *journal.Store) error {
			printStats(os.Stdout, j, statsDays, statsItem)
			return nil
		})
	},
}

var journalItemsCmd = &cobra.Command{
	Use:   "items [toggle <id> | add <name> [description] | rm <id>]",
	Short: "List or change trackable items",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournal(cmd, func(j *journal.Store) error {
			ctx := cmd.Context()
			if len(args) >= 2 {
				var err error
				switch args[0] {
				case "toggle":
					_, err = j.ToggleItem(ctx, args[1])
				case "add":
					item := journal.TrackableItem{Name: args[1], Icon: "•"}
					if len(args) > 2 {
						item.Description = strings.Join(args[2:], " ")
					}
					_, err = j.AddCustomItem(ctx, item)
				case "rm":
					err = j.RemoveItem(ctx, args[1])
				default:
					return fmt.Errorf("unknown items action %q", args[0])
				}
				if err != nil {
					return err
				}
			}
			for _, it := range j.Items() {
				mark := colorGray + "[ ]" + colorReset
				if it.Enabled {
					mark = colorGreen + "[x]" + colorReset
				}
				fmt.Printf("%s %s %-16s %s %s\n", mark, it.Icon, it.ID, it.Name, colorGray+it.Description+colorReset)
			}
			return nil
		})
	},
}

var journalPromptsCmd = &cobra.Command{
	Use:   "prompts [toggle <id> | add <question...> | rm <id>]",
	Short: "List or change reflection prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournal(cmd, func(j *journal.Store) error {
			ctx := cmd.Context()
			if len(args) >= 2 {
				var err error
				switch args[0] {
				case "toggle":
					_, err = j.TogglePrompt(ctx, args[1])
				case "add":
					_, err = j.AddCustomPrompt(ctx, strings.Join(args[1:], " "))
				case "rm":
					err = j.RemovePrompt(ctx, args[1])
				default:
					return fmt.Errorf("unknown prompts action %q", args[0])
				}
				if err != nil {
					return err
				}
			}
			for _, p := range j.Prompts() {
				mark := colorGray + "[ ]" + colorReset
				if p.Enabled {
					mark = colorGreen + "[x]" + colorReset
				}
				fmt.Printf("%s %-22s %s\n", mark, p.ID, p.Prompt)
			}
			return nil
		})
	},
}

func init() {
	journalCmd.PersistentFlags().StringVar(&journalDate, "date", "", "day to edit as YYYY-MM-DD (default today)")
	journalStatsCmd.Flags().IntVar(&statsDays, "days", 14, "how many days to include")
	journalStatsCmd.Flags().StringVar(&statsItem, "item", "", "limit the series to one item")

	journalCmd.AddCommand(journalRateCmd, journalReflectCmd, journalNoteCmd, journalShowCmd,
		journalStatsCmd, journalItemsCmd, journalPromptsCmd)
}

func withJournal(cmd *cobra.Command, fn func(*journal.Store) error) error {
	a, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a.journal)
}

func dateOrToday(j *journal.Store) string {
	if journalDate != "" {
		return journalDate
	}
	return j.Today()
}

func ratingSymbol(r journal.Rating) string {
	switch r {
	case journal.RatingBetter:
		return colorGreen + "↑ better" + colorReset
	case journal.RatingSame:
		return colorYellow + "→ same" + colorReset
	case journal.RatingWorse:
		return colorRed + "↓ worse" + colorReset
	}
	return colorGray + "·" + colorReset
}

func printEntry(w io.Writer, j *journal.Store, e journal.Entry) {
	fmt.Fprintf(w, "\n%s%s%s\n", colorBold, e.Date, colorReset)
	for _, it := range j.EnabledItems() {
		r, _ := e.Tracking(it.ID)
		fmt.Fprintf(w, "  %s %-20s %s\n", it.Icon, it.Name, ratingSymbol(r))
	}
	for _, p := range j.EnabledPrompts() {
		fmt.Fprintf(w, "\n  %s%s%s\n", colorBlue, p.Prompt, colorReset)
		if r, ok := e.Reflection(p.ID); ok && r.Response != "" {
			fmt.Fprintf(w, "  %s\n", r.Response)
		} else {
			fmt.Fprintf(w, "  %s(journal reflect %s ...)%s\n", colorGray, p.ID, colorReset)
		}
	}
	if e.Notes != "" {
		fmt.Fprintf(w, "\n  Notes: %s\n", e.Notes)
	}
	fmt.Fprintln(w)
}

func printStats(w io.Writer, j *journal.Store, days int, itemID string) {
	entries := j.LastDays(days)
	fmt.Fprintf(w, "\n%sLast %d days%s  streak: %d\n", colorBold, days, colorReset, j.StreakDays())

	sum := journal.Trend(entries, itemID)
	fmt.Fprintf(w, "  %s%d better%s  %s%d same%s  %s%d worse%s\n",
		colorGreen, sum.Better, colorReset, colorYellow, sum.Same, colorReset, colorRed, sum.Worse, colorReset)

	fmt.Fprintln(w, "\n  Cumulative:")
	for _, p := range journal.CumulativeSeries(entries, itemID) {
		bar := ""
		switch {
		case p.Score > 0:
			bar = colorGreen + strings.Repeat("█", min(p.Score, 40)) + colorReset
		case p.Score < 0:
			bar = colorRed + strings.Repeat("█", min(-p.Score, 40)) + colorReset
		}
		fmt.Fprintf(w, "  %s %+4d %s\n", p.Date, p.Score, bar)
	}

	if itemID == "" {
		fmt.Fprintln(w, "\n  By item:")
		for _, t := range journal.ItemTrends(entries, j.EnabledItems()) {
			if t.Total() == 0 {
				continue
			}
			fmt.Fprintf(w, "  %s %-20s ↑%d →%d ↓%d  %+d\n", t.Item.Icon, t.Item.Name, t.Better, t.Same, t.Worse, t.Net())
		}
	}
	fmt.Fprintln(w)
}
