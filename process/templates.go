package process

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"

	"mfx/config"
	"mfx/message"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context    string
	SourceFile string
	MessageID  string
	Date       string
	Layout     string
}

func expandTemplate(m *message.Message, name config.TemplateFieldName, field string, layout config.OutputLayout) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values := Values{
		Context:    string(name),
		SourceFile: strings.TrimSuffix(filepath.Base(m.SrcName), filepath.Ext(m.SrcName)),
		MessageID:  m.ID,
		Date:       time.Now().Format("2006-01-02"),
		Layout:     layout.String(),
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
