package doxygen

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

// Doxyfile is a read-only view of a doxygen configuration file. Tags keep the
// order in which they were first assigned.
type Doxyfile struct {
	Path  string
	tags  map[string][]string
	order []string
	files []string
}

// ParseDoxyfile parses Doxyfile syntax from r. @INCLUDE directives are recorded
// under the "@INCLUDE" tag but not followed; use ReadDoxyfile for that.
func ParseDoxyfile(r io.Reader) (*Doxyfile, error) {
	d := &Doxyfile{tags: make(map[string][]string)}
	p := &parser{doc: d, name: "<input>"}
	if err := p.parse(r); err != nil {
		return nil, err
	}
	return d, nil
}

// ReadDoxyfile parses the file at path, following @INCLUDE directives relative
// to the including file's directory and any @INCLUDE_PATH entries.
func ReadDoxyfile(path string) (*Doxyfile, error) {
	d := &Doxyfile{Path: path, tags: make(map[string][]string)}
	if err := d.load(path, map[string]bool{}); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Doxyfile) load(path string, seen map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if seen[abs] {
		return foundation.ConfigError("recursive @INCLUDE in Doxyfile").
			WithContext("path", abs).
			Build()
	}
	seen[abs] = true
	defer delete(seen, abs)
	d.files = append(d.files, abs)

	f, err := os.Open(abs)
	if err != nil {
		return foundation.WrapError(err, foundation.CategoryConfig, "cannot open Doxyfile").
			WithContext("path", abs).
			Build()
	}
	defer func() { _ = f.Close() }()

	p := &parser{
		doc:  d,
		name: abs,
		include: func(name string) error {
			target, err := d.resolveInclude(filepath.Dir(abs), name)
			if err != nil {
				return err
			}
			return d.load(target, seen)
		},
	}
	return p.parse(f)
}

func (d *Doxyfile) resolveInclude(baseDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	candidates := []string{filepath.Join(baseDir, name)}
	for _, dir := range d.tags["@INCLUDE_PATH"] {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(baseDir, dir)
		}
		candidates = append(candidates, filepath.Join(dir, name))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", foundation.ConfigError("@INCLUDE file not found").
		WithContext("path", name).
		WithContext("searched", candidates).
		Build()
}

// Files returns the absolute paths of the Doxyfile and every file it
// @INCLUDEs, in load order. It is empty for ParseDoxyfile results.
func (d *Doxyfile) Files() []string {
	return append([]string(nil), d.files...)
}

// HasInput reports whether INPUT names any paths.
func (d *Doxyfile) HasInput() bool {
	return len(d.tags["INPUT"]) > 0
}

// Tags returns tag names in first-assignment order.
func (d *Doxyfile) Tags() []string {
	return append([]string(nil), d.order...)
}

// Values returns the values of tag with $(ENV) references expanded.
func (d *Doxyfile) Values(tag string) []string {
	raw := d.tags[tag]
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, expandEnv(v))
	}
	return out
}

// Value returns the values of tag joined by a single space.
func (d *Doxyfile) Value(tag string) string {
	return strings.Join(d.Values(tag), " ")
}

// Bool interprets tag as a YES/NO flag, returning def when unset.
func (d *Doxyfile) Bool(tag string, def bool) bool {
	switch strings.ToUpper(d.Value(tag)) {
	case "YES":
		return true
	case "NO":
		return false
	default:
		return def
	}
}

// ProjectName returns PROJECT_NAME.
func (d *Doxyfile) ProjectName() string {
	return d.Value("PROJECT_NAME")
}

// Recursive reports whether INPUT directories are scanned recursively.
func (d *Doxyfile) Recursive() bool {
	return d.Bool("RECURSIVE", false)
}

// Inputs returns the INPUT entries resolved against dir. doxygen scans dir
// itself when INPUT is empty.
func (d *Doxyfile) Inputs(dir string) []string {
	values := d.Values("INPUT")
	if len(values) == 0 {
		return []string{dir}
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, resolve(dir, v))
	}
	return out
}

// OutputDir returns OUTPUT_DIRECTORY resolved against dir.
func (d *Doxyfile) OutputDir(dir string) string {
	return resolve(dir, d.Value("OUTPUT_DIRECTORY"))
}

// HTMLDir returns the HTML output directory, or "" when GENERATE_HTML is NO.
func (d *Doxyfile) HTMLDir(dir string) string {
	if !d.Bool("GENERATE_HTML", true) {
		return ""
	}
	html := d.Value("HTML_OUTPUT")
	if html == "" {
		html = "html"
	}
	if filepath.IsAbs(html) {
		return html
	}
	return filepath.Join(d.OutputDir(dir), html)
}

// outputTags name the per-format subdirectories of OUTPUT_DIRECTORY.
var outputTags = map[string]string{
	"HTML_OUTPUT":    "html",
	"LATEX_OUTPUT":   "latex",
	"RTF_OUTPUT":     "rtf",
	"MAN_OUTPUT":     "man",
	"XML_OUTPUT":     "xml",
	"DOCBOOK_OUTPUT": "docbook",
	"SQLITE3_OUTPUT": "sqlite3",
}

// fixedOutputs are subdirectories of OUTPUT_DIRECTORY without a naming tag.
var fixedOutputs = []string{"perlmod", "def"}

// OutputPaths returns every path doxygen writes to when run in dir: the
// format directories, GENERATE_TAGFILE, WARN_LOGFILE, and OUTPUT_DIRECTORY
// itself unless it is dir. The result is sorted.
func (d *Doxyfile) OutputPaths(dir string) []string {
	out := d.OutputDir(dir)
	var paths []string
	if filepath.Clean(out) != filepath.Clean(dir) {
		paths = append(paths, out)
	}
	for tag, def := range outputTags {
		v := d.Value(tag)
		if v == "" {
			v = def
		}
		paths = append(paths, resolve(out, v))
	}
	for _, sub := range fixedOutputs {
		paths = append(paths, filepath.Join(out, sub))
	}
	if tagfile := d.Value("GENERATE_TAGFILE"); tagfile != "" {
		paths = append(paths, resolve(dir, tagfile))
	}
	if logfile := d.Value("WARN_LOGFILE"); logfile != "" {
		paths = append(paths, resolve(dir, logfile))
	}
	sort.Strings(paths)
	return paths
}

func resolve(dir, p string) string {
	if p == "" {
		return dir
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

// expandEnv replaces doxygen-style $(NAME) references with environment values.
func expandEnv(s string) string {
	if !strings.Contains(s, "$(") {
		return s
	}
	var b strings.Builder
	for {
		start := strings.Index(s, "$(")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.IndexByte(s[start:], ')')
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:start])
		b.WriteString(os.Getenv(s[start+2 : start+end]))
		s = s[start+end+1:]
	}
}

type parser struct {
	doc     *Doxyfile
	name    string
	include func(name string) error
}

func (p *parser) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var logical strings.Builder
	lineNo, startLine := 0, 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if logical.Len() == 0 {
			startLine = lineNo
		}
		trimmed := strings.TrimRight(line, " \t\r")
		if strings.HasSuffix(trimmed, "\\") {
			logical.WriteString(strings.TrimSuffix(trimmed, "\\"))
			logical.WriteByte(' ')
			continue
		}
		logical.WriteString(line)
		if err := p.statement(logical.String(), startLine); err != nil {
			return err
		}
		logical.Reset()
	}
	if err := scanner.Err(); err != nil {
		return foundation.WrapError(err, foundation.CategoryConfig, "cannot read Doxyfile").
			WithContext("path", p.name).
			Build()
	}
	if logical.Len() > 0 {
		return p.statement(logical.String(), startLine)
	}
	return nil
}

func (p *parser) statement(line string, lineNo int) error {
	line = strings.TrimSpace(stripComment(line))
	if line == "" {
		return nil
	}

	appendMode := false
	idx := strings.Index(line, "+=")
	eq := strings.IndexByte(line, '=')
	switch {
	case idx >= 0 && (eq < 0 || idx < eq):
		appendMode = true
	case eq >= 0:
		idx = eq
	default:
		return p.syntaxError("expected TAG = value", lineNo)
	}

	tag := strings.TrimSpace(line[:idx])
	rest := line[idx+1:]
	if appendMode {
		rest = line[idx+2:]
	}
	if !validTag(tag) {
		return p.syntaxError(fmt.Sprintf("invalid tag %q", tag), lineNo)
	}
	values, err := splitValues(rest)
	if err != nil {
		return p.syntaxError(err.Error(), lineNo)
	}

	if tag == "@INCLUDE" && p.include != nil {
		for _, v := range values {
			if err := p.include(expandEnv(v)); err != nil {
				return err
			}
		}
		return nil
	}

	d := p.doc
	if _, ok := d.tags[tag]; !ok {
		d.order = append(d.order, tag)
	}
	if appendMode || tag == "@INCLUDE" || tag == "@INCLUDE_PATH" {
		d.tags[tag] = append(d.tags[tag], values...)
	} else {
		d.tags[tag] = values
	}
	return nil
}

func (p *parser) syntaxError(msg string, lineNo int) error {
	return foundation.ConfigError("Doxyfile syntax error: "+msg).
		WithContext("path", p.name).
		WithContext("line", lineNo).
		Build()
}

func validTag(tag string) bool {
	if tag == "" {
		return false
	}
	for i, r := range tag {
		switch {
		case r == '@' && i == 0:
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

// stripComment removes a # comment that is not inside double quotes.
func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inQuote && i+1 < len(line) {
				i++
			}
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

// splitValues splits a value list on whitespace, honoring double quotes.
func splitValues(s string) ([]string, error) {
	var (
		values  []string
		cur     strings.Builder
		inQuote bool
		have    bool
	)
	flush := func() {
		if have {
			values = append(values, cur.String())
		}
		cur.Reset()
		have = false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote && c == '\\' && i+1 < len(s) && s[i+1] == '"':
			cur.WriteByte('"')
			i++
		case c == '"':
			inQuote = !inQuote
			have = true
		case !inQuote && (c == ' ' || c == '\t'):
			flush()
		default:
			cur.WriteByte(c)
			have = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	flush()
	return values, nil
}
