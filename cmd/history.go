package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/querylens/internal/history"
)

var histLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past questions and vote on their answers",
}

func openHistory() (*history.Log, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(c.HistoryPath)
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recent questions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openHistory()
		if err != nil {
			return err
		}
		turns := h.Recent(histLimit)
		return emit(cmd.OutOrStdout(), turns, func(w io.Writer) error {
			if len(turns) == 0 {
				fmt.Fprintln(w, "No questions asked yet.")
				return nil
			}
			tw := tablewriter.NewWriter(w)
			tw.SetAutoWrapText(false)
			tw.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
			tw.SetAutoFormatHeaders(false)
			tw.SetBorder(true)
			tw.SetHeader([]string{"ID", "Asked", "Question", "Chart", "Rows", "Score"})
			for _, t := range turns {
				chart := t.ChartType
				switch {
				case t.Error != "":
					chart = "error"
				case chart == "" && t.Fallback != "":
					chart = "fallback:" + t.Fallback
				}
				tw.Append([]string{
					shortID(t.ID),
					t.AskedAt.Local().Format("2006-01-02 15:04"),
					truncate(t.Question, 60),
					chart,
					strconv.Itoa(t.Rows),
					fmt.Sprintf("%+d", t.Score()),
				})
			}
			tw.Render()
			return nil
		})
	},
}

var historyVoteCmd = &cobra.Command{
	Use:   "vote <id> <up|down>",
	Short: "Rate an answer; liked answers are reused as examples for new questions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var up bool
		switch strings.ToLower(args[1]) {
		case "up", "+", "+1", "like":
			up = true
		case "down", "-", "-1", "dislike":
		default:
			return fmt.Errorf("invalid vote %q (use up or down)", args[1])
		}
		h, err := openHistory()
		if err != nil {
			return err
		}
		t, err := h.Vote(args[0], up)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), t, func(w io.Writer) error {
			fmt.Fprintf(w, "✓ Recorded vote for %s (score %+d)\n", shortID(t.ID), t.Score())
			return nil
		})
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyVoteCmd)
	historyListCmd.Flags().IntVarP(&histLimit, "limit", "n", 20, "number of turns to show (0 = all)")
}
