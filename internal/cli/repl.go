package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	List(ctx context.Context) error
	Open(ctx context.Context, args []string) error
	New(ctx context.Context, args []string) error
	Rename(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Page(ctx context.Context, args []string) error
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
	Show(ctx context.Context) error
	Write(ctx context.Context) error
	AttachLocation(ctx context.Context, args []string) error
	AttachFile(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error
	Calendar(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop for the notebook CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a' with the remaining tokens as
// arguments. Unknown commands are reported back to the user. The loop exits
// on scanner EOF or when the user types "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current notebook and page (from statusFn) and
// accepts:
//
//	help                       — show available commands
//	list | l                   — list notebooks, newest first
//	open <n|id> [page]         — switch notebook, optionally jumping to a page
//	new [title]                — create a notebook and switch to it
//	rename <title>             — rename the current notebook
//	delete <n|id>              — delete a notebook (asks for confirmation)
//	page <n>                   — jump to page n
//	next | prev                — turn one page forward or back
//	show                       — print the current page
//	write                      — replace the current page content (multiline)
//	loc <lat> <lon> [accuracy] — attach a location stamp to the current page
//	file <path>                — attach a file to the current page
//	search <query>             — case-sensitive search across all notebooks
//	calendar [YYYY-MM]         — show activity for a month
//	export <path>              — export the current notebook as a zip archive
//	exit | quit                — leave the program
//
// Any errors returned by command handlers are ignored here; handlers print
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("tn> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn("Available commands: (l)ist, open, new, rename, delete, page, next, prev, show, write, loc, file, search, calendar, export, exit")

		case "l", "list":
			_ = a.List(ctx)

		case "open":
			_ = a.Open(ctx, args)

		case "new":
			_ = a.New(ctx, args)

		case "rename":
			_ = a.Rename(ctx, args)

		case "delete":
			_ = a.Delete(ctx, args)

		case "page":
			_ = a.Page(ctx, args)

		case "next":
			_ = a.Next(ctx)

		case "prev":
			_ = a.Prev(ctx)

		case "show":
			_ = a.Show(ctx)

		case "write":
			_ = a.Write(ctx)

		case "loc":
			_ = a.AttachLocation(ctx, args)

		case "file":
			_ = a.AttachFile(ctx, args)

		case "search":
			_ = a.Search(ctx, args)

		case "calendar":
			_ = a.Calendar(ctx, args)

		case "export":
			_ = a.Export(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
