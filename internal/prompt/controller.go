// Package prompt runs the interactive delete-by-sender loop.
//
// Each pass reads a sender, estimates the match count, asks for an optional
// limit and two confirmations, then searches and deletes. Every pass ends in
// an Outcome so callers and tests can tell bad input from "no matches" from a
// cancelled or completed deletion.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/daviddao/mailpurge/internal/display"
	"github.com/daviddao/mailpurge/internal/gmail"
	"github.com/daviddao/mailpurge/internal/purge"
	"github.com/daviddao/mailpurge/internal/types"
)

// Outcome is how one sender iteration ended.
type Outcome int

const (
	OutcomeQuit Outcome = iota
	OutcomeEmptySender
	OutcomeNoMatches
	OutcomeInvalidLimit
	OutcomeCancelled
	OutcomeDeleted
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeQuit:
		return "quit"
	case OutcomeEmptySender:
		return "empty-sender"
	case OutcomeNoMatches:
		return "no-matches"
	case OutcomeInvalidLimit:
		return "invalid-limit"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeDeleted:
		return "deleted"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Purger is the search/delete surface the controller drives.
type Purger interface {
	Estimate(ctx context.Context, q gmail.Query) (int64, error)
	Search(ctx context.Context, q gmail.Query, maxResults int) purge.SearchResult
	Delete(ctx context.Context, ids []gmail.MessageID, batchSize int) purge.DeleteResult
}

// Recorder stores completed runs.
type Recorder interface {
	RecordRun(r *types.Run) error
}

// Result describes one sender iteration.
type Result struct {
	Outcome  Outcome
	Sender   string
	Estimate int64
	Limit    int
	Found    int
	Deleted  int
	Elapsed  time.Duration
	Delete   purge.DeleteResult
}

// Controller owns the prompt loop. It is not safe for concurrent use.
type Controller struct {
	Purger    Purger
	Recorder  Recorder
	Logger    *slog.Logger
	Clock     func() time.Time
	BatchSize int

	in  *bufio.Scanner
	out io.Writer
}

// New returns a Controller reading answers from in and writing prompts to out.
func New(p Purger, in io.Reader, out io.Writer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Controller{
		Purger:    p,
		Logger:    logger,
		Clock:     time.Now,
		BatchSize: gmail.MaxBatchSize,
		in:        bufio.NewScanner(in),
		out:       out,
	}
}

// Run loops until the user types quit, input ends or ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := c.Step(ctx)
		c.Logger.DebugContext(ctx, "iteration finished", "outcome", res.Outcome.String(), "sender", res.Sender)
		if res.Outcome == OutcomeQuit {
			return nil
		}
	}
}

// Step runs a single sender iteration.
func (c *Controller) Step(ctx context.Context) Result {
	sender, ok := c.ask("\nWhich emails would you like to remove? (Enter sender name or email, or 'quit' to exit): ")
	if !ok || strings.EqualFold(sender, "quit") {
		return Result{Outcome: OutcomeQuit}
	}
	if sender == "" {
		display.WarnMsg(c.out, "Please enter a valid sender name or email.")
		return Result{Outcome: OutcomeEmptySender}
	}

	res := Result{Sender: sender}
	query := gmail.FromSender(sender)

	display.Info(c.out, "Estimating total emails from '%s'...", sender)
	estimate, err := c.Purger.Estimate(ctx, query)
	if err != nil {
		c.Logger.ErrorContext(ctx, "estimate failed", "query", query.Raw, "error", err)
		display.ErrorMsg(c.out, "Error estimating email count: %v", err)
		estimate = 0
	}
	res.Estimate = estimate
	if estimate == 0 {
		display.Info(c.out, "No emails found from '%s'.", sender)
		res.Outcome = OutcomeNoMatches
		return res
	}
	display.Info(c.out, "Estimated %d emails from '%s'", estimate, sender)

	answer, ok := c.ask("Would you like to set a limit on the number of emails to delete? (yes/no): ")
	if !ok {
		return Result{Outcome: OutcomeQuit}
	}
	if isYes(answer) {
		raw, ok := c.ask("Enter the maximum number of emails to delete: ")
		if !ok {
			return Result{Outcome: OutcomeQuit}
		}
		limit, err := strconv.Atoi(raw)
		if err != nil {
			display.WarnMsg(c.out, "Please enter a valid number.")
			res.Outcome = OutcomeInvalidLimit
			return res
		}
		if limit <= 0 {
			display.WarnMsg(c.out, "Please enter a positive number.")
			res.Outcome = OutcomeInvalidLimit
			return res
		}
		res.Limit = limit
	}

	target := estimate
	if res.Limit > 0 {
		target = int64(res.Limit)
	}
	if outcome, confirmed := c.confirm(fmt.Sprintf("About to delete up to %d emails. Are you sure? (yes/no): ", target)); !confirmed {
		res.Outcome = outcome
		return res
	}

	display.Info(c.out, "Searching for emails from '%s'...", sender)
	found := c.Purger.Search(ctx, query, res.Limit)
	res.Found = len(found.IDs)
	if ctx.Err() != nil {
		display.Info(c.out, "")
		display.WarnMsg(c.out, "Search interrupted after %d emails. Nothing was deleted.", res.Found)
		res.Outcome = OutcomeInterrupted
		return res
	}
	if found.Err != nil {
		display.WarnMsg(c.out, "An error occurred during search: %v (found %d so far)", found.Err, res.Found)
	}
	if res.Found == 0 {
		display.Info(c.out, "No emails found from '%s'.", sender)
		res.Outcome = OutcomeNoMatches
		return res
	}
	display.Info(c.out, "Found %d emails ready for deletion.", res.Found)

	if outcome, confirmed := c.confirm(fmt.Sprintf("Ready to delete %d emails. Proceed? (yes/no): ", res.Found)); !confirmed {
		res.Outcome = outcome
		return res
	}

	display.Info(c.out, "Starting deletion of %d emails...", res.Found)
	display.Note(c.out, "This may take several minutes for large volumes...")

	started := c.Clock()
	res.Delete = c.Purger.Delete(ctx, found.IDs, c.BatchSize)
	finished := c.Clock()
	res.Elapsed = finished.Sub(started)
	res.Deleted = res.Delete.Deleted
	res.Outcome = OutcomeDeleted
	if ctx.Err() != nil {
		res.Outcome = OutcomeInterrupted
	}

	c.report(res)
	if res.Deleted > 0 || res.Outcome == OutcomeDeleted {
		c.record(ctx, query, res, started, finished)
	}
	return res
}

// ReportBatch prints progress for one delete batch. Wire it to
// purge.Service.Progress.
func (c *Controller) ReportBatch(b purge.BatchResult) {
	if b.Err != nil {
		display.ErrorMsg(c.out, "Error deleting batch %d: %v", b.Index, b.Err)
		return
	}
	display.Info(c.out, "Deleted batch %d: %d emails (Total: %d)", b.Index, b.Size, b.Total)
}

func (c *Controller) report(res Result) {
	display.Info(c.out, "")
	if res.Outcome == OutcomeInterrupted {
		display.WarnMsg(c.out, "Interrupted: deleted %d of %d emails in %s.", res.Deleted, res.Found, display.Seconds(res.Elapsed))
		return
	}
	display.SuccessMsg(c.out, "Successfully deleted %d emails in %s!", res.Deleted, display.Seconds(res.Elapsed))
	if res.Deleted < res.Found {
		display.WarnMsg(c.out, "Note: %d emails may not have been deleted due to errors.", res.Found-res.Deleted)
	}
}

func (c *Controller) record(ctx context.Context, q gmail.Query, res Result, started, finished time.Time) {
	if c.Recorder == nil {
		return
	}
	run := &types.Run{
		Sender:        res.Sender,
		Query:         q.Raw,
		Estimate:      res.Estimate,
		Limit:         res.Limit,
		Found:         res.Found,
		Deleted:       res.Deleted,
		FailedBatches: res.Delete.Failed(),
		Elapsed:       res.Elapsed,
		StartedAt:     started.UTC().Format(time.RFC3339),
		FinishedAt:    finished.UTC().Format(time.RFC3339),
	}
	if err := c.Recorder.RecordRun(run); err != nil {
		c.Logger.WarnContext(ctx, "could not record run", "sender", res.Sender, "error", err)
	}
}

// confirm asks a yes/no question. Anything but yes cancels.
func (c *Controller) confirm(prompt string) (Outcome, bool) {
	answer, ok := c.ask(prompt)
	if !ok {
		return OutcomeQuit, false
	}
	if !isYes(answer) {
		display.Info(c.out, "Deletion cancelled.")
		return OutcomeCancelled, false
	}
	return OutcomeDeleted, true
}

// ask prints prompt and reads one trimmed line. ok is false at end of input
// or when reading fails.
func (c *Controller) ask(prompt string) (string, bool) {
	io.WriteString(c.out, prompt)
	if !c.in.Scan() {
		io.WriteString(c.out, "\n")
		if err := c.in.Err(); err != nil {
			c.Logger.Error("reading input failed", "error", err)
			display.ErrorMsg(c.out, "Could not read input: %v", err)
		}
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}
