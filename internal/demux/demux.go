// Package demux recovers per-image answers from the single combined response
// a model returns when asked about several images in one call.
//
// Model output is free text governed only by a prompt instruction, so no
// single parse is reliable. Extraction runs an ordered cascade of strategies
// per filename; the first one to produce a non-empty answer wins. The final
// stage assigns the entire response to the image. That is lossy, but every
// image always gets an answer.
package demux

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/avelsen/vision-consensus/internal/consensus"
)

// Combined is the raw output of one model asked about several images in a
// single call.
type Combined struct {
	Model   string
	RawText string
	// Filenames lists the images sent in the call, in attachment order.
	Filenames    []string
	OK           bool
	ErrorMessage string
}

// Strategy attempts to recover the answer for one filename from a combined
// response. index is the filename's 0-based position in the batch and total
// the batch size. A false return means the strategy cannot decide and the
// next one is consulted.
type Strategy func(raw, filename string, index, total int) (string, bool)

// letterToken matches a standalone multiple-choice letter.
var letterToken = regexp.MustCompile(`\b([A-D])\b`)

// Demultiplex splits a combined response into one answer per filename, in
// order. The result always has len(c.Filenames) entries.
//
// A failed batch call fails every image identically: there was exactly one
// shared response and it never arrived, so no partial recovery is possible.
// When even the cascade's parsing stages fail, the whole response text is
// assigned and the answer is marked Unresolved so callers can detect that
// disambiguation failed.
func Demultiplex(c Combined) []consensus.Answer {
	answers := make([]consensus.Answer, len(c.Filenames))

	if !c.OK {
		for i := range answers {
			answers[i] = consensus.Answer{
				Model:        c.Model,
				OK:           false,
				ErrorMessage: c.ErrorMessage,
			}
		}
		return answers
	}

	strategies := []Strategy{
		labeledSegment(c.Filenames),
		ordinalLine,
		positionalLetters,
		lineByLine,
	}

	for i, name := range c.Filenames {
		text, resolved := extract(c.RawText, name, i, len(c.Filenames), strategies)
		answers[i] = consensus.Answer{
			Model:      c.Model,
			Text:       text,
			OK:         true,
			Unresolved: !resolved,
		}
	}
	return answers
}

func extract(raw, filename string, index, total int, strategies []Strategy) (text string, resolved bool) {
	for _, s := range strategies {
		if out, ok := s(raw, filename, index, total); ok {
			if out = strings.TrimSpace(out); out != "" {
				return out, true
			}
		}
	}
	// Terminal fallback: hand back everything. Likely wrong for all but one
	// image in the batch, but better than nothing.
	return raw, false
}

// labeledSegment matches "Image <filename>:" or bare "<filename>:" labels,
// case-insensitively, and captures up to the next label in the batch or end
// of text. Filenames are quoted so dots and other metacharacters match
// literally.
func labeledSegment(filenames []string) Strategy {
	labels := make([]*regexp.Regexp, len(filenames))
	for i, name := range filenames {
		labels[i] = regexp.MustCompile(`(?i)(?:image\s+)?` + regexp.QuoteMeta(name) + `\s*:`)
	}

	return func(raw, filename string, index, total int) (string, bool) {
		if index >= len(labels) {
			return "", false
		}
		loc := labels[index].FindStringIndex(raw)
		if loc == nil {
			return "", false
		}

		start := loc[1]
		end := len(raw)
		for j, label := range labels {
			if j == index {
				continue
			}
			for _, m := range label.FindAllStringIndex(raw, -1) {
				if m[0] >= start && m[0] < end {
					end = m[0]
				}
			}
		}
		return raw[start:end], true
	}
}

// ordinalLine matches a line starting with the image's 1-based position
// ("3." or "3)") and captures the short token after it.
func ordinalLine(raw, filename string, index, total int) (string, bool) {
	re := regexp.MustCompile(`(?m)^\s*` + strconv.Itoa(index+1) + `[.)]\s*([A-Za-z0-9]+)`)
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// positionalLetters assigns the Nth standalone A-D token to the Nth image.
// It only fires when the response contains exactly one such token per image;
// any other count is too ambiguous to trust positionally.
func positionalLetters(raw, filename string, index, total int) (string, bool) {
	found := letterToken.FindAllString(raw, -1)
	if len(found) != total || index >= len(found) {
		return "", false
	}
	return found[index], true
}

// lineByLine assigns the Nth non-blank line to the Nth image, preferring a
// standalone letter token on that line over the whole line.
func lineByLine(raw, filename string, index, total int) (string, bool) {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if index >= len(lines) {
		return "", false
	}
	if letter := letterToken.FindString(lines[index]); letter != "" {
		return letter, true
	}
	return lines[index], true
}
