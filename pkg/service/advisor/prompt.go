package advisor

import (
	"bytes"
	"embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/*.md
var promptFS embed.FS

var promptTmpl = template.Must(template.New("").Funcs(template.FuncMap{
	"join": strings.Join,
}).ParseFS(promptFS, "prompt/*.md"))

// renderPrompt executes prompt/<name>.md with data
func renderPrompt(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := promptTmpl.ExecuteTemplate(&buf, name+".md", data); err != nil {
		return "", goerr.Wrap(err, "failed to execute prompt template", goerr.V("name", name))
	}
	return strings.TrimSpace(buf.String()), nil
}
