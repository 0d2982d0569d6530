package client

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"smartledger/internal/domain/sync"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.FgWhite)
	mutedColor   = color.New(color.FgHiBlack)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
)

// RenderDashboard печатает все секции дашборда: владельца, сущности
// с их полями и видимое уведомление.
func (a *App) RenderDashboard(w io.Writer) {
	ident := a.Identity()
	if ident == nil {
		mutedColor.Fprintln(w, "Не выполнен вход")
	} else if ident.Anonymous {
		mutedColor.Fprintf(w, "Устройство: %s\n", ident.Display())
	} else {
		mutedColor.Fprintf(w, "Владелец: %s\n", ident.Display())
	}
	fmt.Fprintln(w)

	for _, ctrl := range a.Controllers() {
		renderSection(w, ctrl)
		fmt.Fprintln(w)
	}

	if n := a.Notification(); n != nil {
		if n.Severity == SeverityError {
			errorColor.Fprintln(w, n.Message)
		} else {
			successColor.Fprintln(w, n.Message)
		}
	}
}

func renderSection(w io.Writer, ctrl *sync.Controller) {
	schema := ctrl.Schema()

	titleColor.Fprint(w, schema.Title)
	switch ctrl.State() {
	case sync.StateLoading:
		mutedColor.Fprint(w, "  (загрузка...)")
	case sync.StateSaving:
		mutedColor.Fprint(w, "  (сохранение...)")
	}
	fmt.Fprintln(w)

	draft := ctrl.Draft()
	for _, f := range schema.Fields {
		labelColor.Fprintf(w, "  %s: ", f.Label)
		if value := draft[f.Name]; value == "" {
			mutedColor.Fprintln(w, "—")
		} else {
			fmt.Fprintln(w, value)
		}
	}
}
