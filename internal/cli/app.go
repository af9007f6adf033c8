package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/shimada839/toshinote/internal/models"
	"github.com/shimada839/toshinote/internal/session"
)

// App is the interactive terminal frontend. All notebook state lives in the
// session manager; App only parses commands and renders output.
type App struct {
	session *session.Manager
	reader  *bufio.Reader
	out     io.Writer
}

func NewApp(m *session.Manager) *App {
	return &App{
		session: m,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}
}

// Run starts the read-eval-print loop on stdin and blocks until the user
// exits or input is exhausted.
func (a *App) Run(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)
}

// status renders the prompt fragment: current notebook title and page.
func (a *App) status() string {
	nb := a.session.Current()
	if nb == nil {
		return "no notebook"
	}
	return fmt.Sprintf("%s p.%d/%d", nb.Title, nb.CurrentPage, models.PageCount)
}
