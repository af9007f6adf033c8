package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shimada839/toshinote/internal/common"
	"github.com/shimada839/toshinote/internal/export"
	"github.com/shimada839/toshinote/internal/models"
)

// List prints the notebook metadata list, newest first. The index shown in
// front of each entry can be used with open and delete.
func (a *App) List(ctx context.Context) error {
	for i, meta := range a.session.Notebooks() {
		fmt.Fprintf(a.out, "%3d. %s  (modified %s)\n",
			i+1, meta.Title, meta.LastModified.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// Open switches to another notebook by list index or id, optionally jumping
// to a page.
func (a *App) Open(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(a.out, "usage: open <n|id> [page]")
		return nil
	}

	id, err := a.resolveID(args[0])
	if err != nil {
		fmt.Fprintln(a.out, err)
		return err
	}

	page := 0
	if len(args) > 1 {
		page, err = strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintln(a.out, "page must be a number")
			return err
		}
	}

	if err := a.session.LoadNotebook(ctx, id, page); err != nil {
		fmt.Fprintln(a.out, "failed to open notebook:", err)
		return err
	}
	return a.Show(ctx)
}

// New creates a notebook and switches to it. Remaining arguments form the
// title; without them the default title is used.
func (a *App) New(ctx context.Context, args []string) error {
	title := strings.Join(args, " ")
	nb, err := a.session.CreateNotebook(ctx, title)
	if err != nil {
		fmt.Fprintln(a.out, "failed to create notebook:", err)
		return err
	}
	fmt.Fprintf(a.out, "Created %q\n", nb.Title)
	return nil
}

// Rename gives the current notebook a new title.
func (a *App) Rename(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "usage: rename <title>")
		return nil
	}
	if err := a.session.Rename(ctx, strings.Join(args, " ")); err != nil {
		fmt.Fprintln(a.out, "failed to rename:", err)
		return err
	}
	return nil
}

// Delete removes a notebook after confirmation. The last remaining notebook
// cannot be deleted.
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(a.out, "usage: delete <n|id>")
		return nil
	}

	id, err := a.resolveID(args[0])
	if err != nil {
		fmt.Fprintln(a.out, err)
		return err
	}

	ok, err := Confirm(a.reader, "Delete this notebook and all its pages?", a.out)
	if err != nil || !ok {
		return err
	}

	if err := a.session.DeleteNotebook(ctx, id); err != nil {
		if errors.Is(err, common.ErrLastNotebook) {
			fmt.Fprintln(a.out, "Cannot delete the last notebook.")
		} else {
			fmt.Fprintln(a.out, "failed to delete:", err)
		}
		return err
	}
	fmt.Fprintln(a.out, "Deleted.")
	return nil
}

// Page jumps to the given 1-based page of the current notebook.
func (a *App) Page(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(a.out, "usage: page <n>")
		return nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintln(a.out, "page must be a number")
		return err
	}
	return a.turnTo(ctx, n)
}

// Next turns one page forward.
func (a *App) Next(ctx context.Context) error {
	nb := a.session.Current()
	if nb == nil {
		return nil
	}
	return a.turnTo(ctx, nb.CurrentPage+1)
}

// Prev turns one page back.
func (a *App) Prev(ctx context.Context) error {
	nb := a.session.Current()
	if nb == nil {
		return nil
	}
	return a.turnTo(ctx, nb.CurrentPage-1)
}

func (a *App) turnTo(ctx context.Context, page int) error {
	if err := a.session.TurnPage(ctx, page); err != nil {
		fmt.Fprintln(a.out, err)
		return err
	}
	return a.Show(ctx)
}

// Show prints the current page content and its attachments.
func (a *App) Show(ctx context.Context) error {
	nb := a.session.Current()
	if nb == nil {
		return nil
	}
	p := nb.Page(nb.CurrentPage)

	fmt.Fprintf(a.out, "--- %s, page %d/%d ---\n", nb.Title, nb.CurrentPage, models.PageCount)
	if p.Content == "" {
		fmt.Fprintln(a.out, "(blank)")
	} else {
		fmt.Fprintln(a.out, p.Content)
	}
	for _, att := range p.Attachments {
		switch att.Type {
		case models.AttachmentLocation:
			fmt.Fprintf(a.out, "[location] %s\n", att.Name)
		default:
			fmt.Fprintf(a.out, "[%s] %s (%d bytes)\n", att.Type, att.Name, len(att.Data))
		}
	}
	return nil
}

// Write reads a multiline body from the user and replaces the current page
// content with it.
func (a *App) Write(ctx context.Context) error {
	content, err := GetMultiline(a.reader, "Enter page content", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "failed to read input:", err)
		return err
	}
	if err := a.session.WritePage(ctx, content); err != nil {
		fmt.Fprintln(a.out, "failed to write page:", err)
		return err
	}
	return nil
}

// AttachLocation stamps the current page with a location attachment.
func (a *App) AttachLocation(ctx context.Context, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(a.out, "usage: loc <lat> <lon> [accuracy]")
		return nil
	}

	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintln(a.out, "latitude must be a number")
		return err
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintln(a.out, "longitude must be a number")
		return err
	}
	accuracy := 0.0
	if len(args) > 2 {
		accuracy, err = strconv.ParseFloat(args[2], 64)
		if err != nil {
			fmt.Fprintln(a.out, "accuracy must be a number")
			return err
		}
	}

	if err := a.session.AttachLocation(ctx, lat, lon, accuracy); err != nil {
		fmt.Fprintln(a.out, "failed to attach location:", err)
		return err
	}
	return a.Show(ctx)
}

// AttachFile attaches a file from disk to the current page.
func (a *App) AttachFile(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(a.out, "usage: file <path>")
		return nil
	}
	if err := a.session.AttachFile(ctx, args[0]); err != nil {
		fmt.Fprintln(a.out, "failed to attach file:", err)
		return err
	}
	return a.Show(ctx)
}

// Search scans all notebooks for the query and prints one line per match.
func (a *App) Search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "usage: search <query>")
		return nil
	}

	results, err := a.session.SearchNotebooks(ctx, strings.Join(args, " "))
	if err != nil {
		fmt.Fprintln(a.out, "search failed:", err)
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(a.out, "No matches.")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(a.out, "%s p.%d: %s\n", r.Title, r.PageNumber, r.Snippet)
	}
	return nil
}

// Calendar prints the activity entries for a month, current month by
// default. An explicit month is given as YYYY-MM.
func (a *App) Calendar(ctx context.Context, args []string) error {
	now := time.Now()
	year, month := now.Year(), int(now.Month())
	if len(args) > 0 {
		parsed, err := time.Parse("2006-01", args[0])
		if err != nil {
			fmt.Fprintln(a.out, "month must look like 2026-09")
			return err
		}
		year, month = parsed.Year(), int(parsed.Month())
	}

	entries, err := a.session.MonthlyActivity(ctx, year, month)
	if err != nil {
		fmt.Fprintln(a.out, "failed to load calendar:", err)
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(a.out, "No activity in %04d-%02d.\n", year, month)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(a.out, "%s %s  %s p.%d\n", e.Date, e.Time, e.Title, e.PageNumber)
	}
	return nil
}

// Export writes the current notebook to a zip archive on disk.
func (a *App) Export(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(a.out, "usage: export <path>")
		return nil
	}

	nb := a.session.Current()
	if nb == nil {
		return nil
	}
	if err := export.WriteFile(args[0], nb); err != nil {
		if errors.Is(err, common.ErrNothingToExport) {
			fmt.Fprintln(a.out, "Notebook has no content to export.")
		} else {
			fmt.Fprintln(a.out, "export failed:", err)
		}
		return err
	}
	fmt.Fprintf(a.out, "Exported to %s\n", args[0])
	return nil
}

// resolveID turns a list index (1-based, as printed by List) or a raw id
// into a notebook id.
func (a *App) resolveID(arg string) (string, error) {
	notebooks := a.session.Notebooks()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(notebooks) {
			return "", fmt.Errorf("no notebook at index %d", n)
		}
		return notebooks[n-1].ID, nil
	}
	for _, meta := range notebooks {
		if meta.ID == arg {
			return meta.ID, nil
		}
	}
	return "", fmt.Errorf("no notebook with id %q", arg)
}
