package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/example/ec-admin-console/internal/readmodel"
	"github.com/example/ec-admin-console/internal/views"
)

type pageFlags struct {
	page  int
	limit int
}

func (p *pageFlags) register(c *cobra.Command) {
	c.Flags().IntVar(&p.page, "page", 1, "page number")
	c.Flags().IntVar(&p.limit, "limit", readmodel.DefaultLimit, "rows per page (10, 20 or 50)")
}

func (p *pageFlags) apply(c interface {
	SetLimit(int) error
	SetPage(int)
}) error {
	if err := c.SetLimit(p.limit); err != nil {
		return err
	}
	c.SetPage(p.page)
	return nil
}

// table is a borderless, left-aligned grid; header may be empty
func table(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	if len(header) > 0 {
		t.SetHeader(header)
	}
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetCenterSeparator("")
	t.SetColumnSeparator("")
	t.SetRowSeparator("")
	t.SetTablePadding("  ")
	t.SetNoWhiteSpace(true)
	return t
}

// userError shows msg while errors.Is still sees err
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.err }

func saveError(err error) error {
	return &userError{msg: views.SaveMessage(err), err: err}
}

// footer prints "Showing A to B of N results" and the page position
func footer[T any](w io.Writer, snap views.Snapshot[T]) {
	if r := snap.Range(); r != "" {
		fmt.Fprintf(w, "%s (page %d of %d)\n", r, snap.Page.Page, snap.Pages)
		return
	}
	fmt.Fprintln(w, "No results")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// promptConfirm asks on the command's streams; only y or yes approves
func promptConfirm(cmd *cobra.Command) views.Confirmer {
	return views.ConfirmFunc(func(prompt string) bool {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", prompt)
		line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	})
}

func confirmer(cmd *cobra.Command, yes bool) views.Confirmer {
	if yes {
		return views.AlwaysConfirm
	}
	return promptConfirm(cmd)
}
