// Package prompt holds the default instructions sent with question images.
package prompt

import (
	"strings"
	"text/template"
)

// Individual is the default prompt for one image per call. Answers must stay
// terse so the consensus comparison operates on categorical text.
const Individual = "Answer the question shown in the image. " +
	"If it is a multiple-choice question, reply with only the letter of the correct answer. " +
	"If it is a math question, reply with only the number. " +
	"Do not explain your answer."

const batchTemplate = `{{.Instruction}}

You are given {{len .Filenames}} images. Answer every one of them.
Use exactly this output format, one line per image, in this order:
{{- range .Filenames}}
Image {{.}}: [answer]
{{- end}}`

var batchTmpl = template.Must(template.New("batch").Parse(batchTemplate))

// Batch builds the default prompt for a combined call covering filenames, in
// attachment order.
func Batch(filenames []string) string {
	return BatchWith(Individual, filenames)
}

// BatchWith builds a combined-call prompt from a custom instruction. The
// required output format is only a prompt instruction; responses that ignore
// it are handled by the demultiplexer's fallbacks.
func BatchWith(instruction string, filenames []string) string {
	data := struct {
		Instruction string
		Filenames   []string
	}{
		Instruction: instruction,
		Filenames:   filenames,
	}

	var b strings.Builder
	if err := batchTmpl.Execute(&b, data); err != nil {
		// Template and data shape are fixed at compile time.
		panic(err)
	}
	return b.String()
}
