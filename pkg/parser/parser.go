// Package parser reads .test scripts.
//
// A script is a list of tests. `test "name"` opens a test; the lines after it
// are directives (tag, skip, requires_local) or steps, one per line. Blank
// lines and lines starting with # are ignored. Arguments are separated by
// spaces and may be quoted with "double" or 'single' quotes.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kidandcat/pagesuite/pkg/runner"
)

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) ParseFile(filename string) ([]runner.Test, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tests, err := p.parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	for i := range tests {
		tests[i].File = filename
	}
	return tests, nil
}

func (p *Parser) ParseString(content string) ([]runner.Test, error) {
	return p.parse(strings.NewReader(content))
}

func (p *Parser) parse(r io.Reader) ([]runner.Test, error) {
	var tests []runner.Test
	var currentTest *runner.Test
	lineNum := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields, err := tokenize(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		switch fields[0] {
		case "test":
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: test requires a name", lineNum)
			}
			if currentTest != nil {
				tests = append(tests, *currentTest)
			}
			currentTest = &runner.Test{
				Name: strings.Join(fields[1:], " "),
				Line: lineNum,
			}

		case "tag", "skip", "requires_local":
			if currentTest == nil {
				return nil, fmt.Errorf("line %d: %s outside of a test", lineNum, fields[0])
			}
			applyDirective(currentTest, fields)

		default:
			if currentTest == nil {
				return nil, fmt.Errorf("line %d: step %s outside of a test", lineNum, fields[0])
			}
			step, err := parseStep(fields, lineNum)
			if err != nil {
				return nil, err
			}
			currentTest.Steps = append(currentTest.Steps, step)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if currentTest != nil {
		tests = append(tests, *currentTest)
	}

	return tests, nil
}

func applyDirective(t *runner.Test, fields []string) {
	switch fields[0] {
	case "tag":
		t.Tags = append(t.Tags, fields[1:]...)
	case "skip":
		t.Skip = "skipped"
		if len(fields) > 1 {
			t.Skip = strings.Join(fields[1:], " ")
		}
	case "requires_local":
		t.RequiresLocal = true
	}
}

// form describes where the arguments of an action go.
type form int

const (
	noArgs         form = iota // go_back
	target                     // click "#button"
	value                      // assert_text_visible "Welcome"
	targetValue                // type "#email" "me@example.com"
	optionalTarget             // screenshot ["name.png"]
	optionalValue              // wait_load ["networkidle"]
	keyPress                   // press ["#search"] "Enter"
	attribute                  // assert_attribute "#link" "href" "/about"
)

type action struct {
	form  form
	usage string
}

var actions = map[string]action{
	"navigate":                  {target, "a URL"},
	"click":                     {target, "a selector"},
	"type":                      {targetValue, "a selector and value"},
	"fill":                      {targetValue, "a selector and value"},
	"press":                     {keyPress, "a key"},
	"wait_for":                  {target, "a selector"},
	"wait_for_hidden":           {target, "a selector"},
	"wait_for_text":             {targetValue, "a selector and text"},
	"wait_for_url":              {target, "a URL pattern"},
	"wait_load":                 {optionalValue, "a load state"},
	"wait":                      {value, "a duration"},
	"assert_text":               {targetValue, "a selector and expected text"},
	"assert_text_contains":      {targetValue, "a selector and text"},
	"assert_element_exists":     {target, "a selector"},
	"assert_element_not_exists": {target, "a selector"},
	"assert_visible":            {target, "a selector"},
	"assert_count":              {targetValue, "a selector and a count"},
	"assert_count_min":          {targetValue, "a selector and a count"},
	"assert_url":                {target, "a URL"},
	"assert_url_contains":       {target, "a URL fragment"},
	"assert_title":              {target, "expected title"},
	"assert_title_contains":     {target, "a title fragment"},
	"assert_text_visible":       {value, "text to search for"},
	"assert_attribute":          {attribute, "selector, attribute name, and expected value"},
	"assert_value":              {targetValue, "a selector and expected value"},
	"assert_cookies_empty":      {noArgs, ""},
	"select":                    {targetValue, "a selector and value"},
	"check":                     {target, "a selector"},
	"uncheck":                   {target, "a selector"},
	"hover":                     {target, "a selector"},
	"go_back":                   {noArgs, ""},
	"reload":                    {noArgs, ""},
	"viewport":                  {value, "a size like 375x667 or a device name"},
	"evaluate":                  {value, "a JavaScript expression"},
	"accept_dialogs":            {optionalValue, ""},
	"screenshot":                {optionalTarget, ""},
	"snapshot":                  {optionalTarget, ""},
}

func parseStep(fields []string, lineNum int) (runner.Step, error) {
	name, args := fields[0], fields[1:]
	a, ok := actions[name]
	if !ok {
		return runner.Step{}, fmt.Errorf("line %d: unknown action: %s", lineNum, name)
	}

	step := runner.Step{Action: name, Line: lineNum}
	missing := fmt.Errorf("line %d: %s requires %s", lineNum, name, a.usage)

	switch a.form {
	case noArgs:
		if len(args) > 0 {
			return runner.Step{}, fmt.Errorf("line %d: %s takes no arguments", lineNum, name)
		}
	case target, optionalTarget:
		if len(args) == 0 {
			if a.form == target {
				return runner.Step{}, missing
			}
			break
		}
		step.Target = strings.Join(args, " ")
	case value, optionalValue:
		if len(args) == 0 {
			if a.form == value {
				return runner.Step{}, missing
			}
			break
		}
		step.Value = strings.Join(args, " ")
	case targetValue:
		if len(args) < 2 {
			return runner.Step{}, missing
		}
		step.Target = args[0]
		step.Value = strings.Join(args[1:], " ")
	case keyPress:
		switch len(args) {
		case 0:
			return runner.Step{}, missing
		case 1:
			step.Value = args[0]
		default:
			step.Target = args[0]
			step.Value = strings.Join(args[1:], " ")
		}
	case attribute:
		if len(args) < 3 {
			return runner.Step{}, missing
		}
		step.Target = args[0] + "|" + args[1]
		step.Value = strings.Join(args[2:], " ")
	}

	if err := validate(step); err != nil {
		return runner.Step{}, fmt.Errorf("line %d: %w", lineNum, err)
	}
	return step, nil
}

// validate checks argument values that can be checked without a browser.
func validate(step runner.Step) error {
	switch step.Action {
	case "assert_count", "assert_count_min":
		if n, err := strconv.Atoi(step.Value); err != nil || n < 0 {
			return fmt.Errorf("%s: %q is not a count", step.Action, step.Value)
		}
	case "wait":
		if _, err := runner.ParseWait(step.Value); err != nil {
			return err
		}
	case "wait_load":
		switch step.Value {
		case "", "load", "domcontentloaded", "networkidle":
		default:
			return fmt.Errorf("wait_load: unknown load state %q", step.Value)
		}
	case "accept_dialogs":
		switch step.Value {
		case "", "true", "false":
		default:
			return fmt.Errorf("accept_dialogs: expected true or false, got %q", step.Value)
		}
	}
	return nil
}

// tokenize splits line on spaces, keeping quoted arguments whole. Inside
// double quotes \" and \\ are escapes; single quotes are literal.
func tokenize(line string) ([]string, error) {
	var (
		fields  []string
		cur     strings.Builder
		inField bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote == '"' && r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inField = true
		case r == ' ' || r == '\t':
			if inField {
				fields = append(fields, cur.String())
				cur.Reset()
				inField = false
			}
		default:
			cur.WriteRune(r)
			inField = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inField {
		fields = append(fields, cur.String())
	}
	return fields, nil
}
