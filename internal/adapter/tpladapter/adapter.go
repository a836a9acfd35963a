package tpladapter

import (
	"bytes"
	"fmt"
	"html/template"
	"os"

	_ "embed"

	"github.com/jgivc/dltracker/internal/entity"
)

const (
	templateNameSessions = "SESSIONS"

	funcNameSessions = "sessions"
	funcNamePercent  = "percent"
	funcNameSize     = "size"
	funcNameSpeed    = "speed"
)

//go:embed status.html
var defaultTemplate string

type tplAdapter struct {
	tpl  *template.Template
	page *entity.StatusPage
}

// NewTplAdapter parses templateFileName, or the embedded status page when it is
// empty. The template must define SESSIONS.
func NewTplAdapter(templateFileName string) (*tplAdapter, error) {
	a := &tplAdapter{}
	tpl := template.New("").Funcs(template.FuncMap{
		funcNameSessions: a.renderSessions,
		funcNamePercent:  percent,
		funcNameSize:     size,
		funcNameSpeed:    speed,
	})

	src := defaultTemplate
	if templateFileName != "" {
		data, err := os.ReadFile(templateFileName)
		if err != nil {
			return nil, fmt.Errorf("cannot read template: %w", err)
		}

		src = string(data)
	}

	if _, err := tpl.Parse(src); err != nil {
		return nil, fmt.Errorf("cannot parse template: %w", err)
	}

	a.tpl = tpl

	return a, nil
}

// Parse renders page. It is not safe for concurrent use.
func (a *tplAdapter) Parse(page *entity.StatusPage) (string, error) {
	a.page = page

	buf := bytes.Buffer{}
	if err := a.tpl.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("cannot execute template: %w", err)
	}

	return buf.String(), nil
}

func (a *tplAdapter) renderSessions() (template.HTML, error) {
	tpl := a.tpl.Lookup(templateNameSessions)
	if tpl == nil {
		return "", fmt.Errorf("template %s must be defined", templateNameSessions)
	}

	buf := bytes.Buffer{}
	if err := tpl.Execute(&buf, a.page.Sessions); err != nil {
		return "", fmt.Errorf("cannot execute template %s: %w", templateNameSessions, err)
	}

	return template.HTML(buf.String()), nil
}

func percent(fraction float64) string {
	return fmt.Sprintf("%.1f%%", fraction*100)
}

func size(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func speed(bitsPerSecond int64) string {
	const unit = 1000
	if bitsPerSecond < unit {
		return fmt.Sprintf("%d bit/s", bitsPerSecond)
	}

	div, exp := int64(unit), 0
	for m := bitsPerSecond / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cbit/s", float64(bitsPerSecond)/float64(div), "kMGTPE"[exp])
}
