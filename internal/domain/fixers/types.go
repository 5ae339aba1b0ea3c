package fixers

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	m "mender.dev/pkg/mender/internal/model"
)

const (
	confidenceMemberCast   = 0.8
	confidenceArgumentCast = 0.7
	confidenceAssignCast   = 0.8
	confidenceImport       = 0.9
	confidenceUnknownCast  = 0.7
	confidenceAnnotation   = 0.8
)

var (
	propertyRe      = regexp.MustCompile(`^Property '([^']+)' does not exist`)
	missingNameRe   = regexp.MustCompile(`^Cannot find name '([^']+)'`)
	implicitParamRe = regexp.MustCompile(`^Parameter '([^']+)' implicitly has an 'any' type`)
	unknownValueRe  = regexp.MustCompile(`^'([^']+)' is of type 'unknown'`)

	mockValueRe   = regexp.MustCompile(`\b(mock(?:Return|Resolved|Rejected)Value(?:Once)?)\(`)
	typedAssignRe = regexp.MustCompile(`^(\s*(?:const|let|var)\s+[\w$]+\s*:\s*[^=]+=\s*)(.+?)(;?)\s*$`)
	vitestRe      = regexp.MustCompile(`from\s+['"]vitest['"]|\bvi\.`)
)

// importSpec is how a known unresolved name gets imported.
type importSpec struct {
	module string
	// defaultImport is set when the name is the module's default export.
	defaultImport bool
}

var knownImports = map[string]importSpec{
	"describe":   {module: "@jest/globals"},
	"it":         {module: "@jest/globals"},
	"test":       {module: "@jest/globals"},
	"expect":     {module: "@jest/globals"},
	"beforeEach": {module: "@jest/globals"},
	"afterEach":  {module: "@jest/globals"},
	"beforeAll":  {module: "@jest/globals"},
	"afterAll":   {module: "@jest/globals"},
	"jest":       {module: "@jest/globals"},
	"vi":         {module: "vitest"},
	"render":     {module: "@testing-library/react"},
	"screen":     {module: "@testing-library/react"},
	"fireEvent":  {module: "@testing-library/react"},
	"waitFor":    {module: "@testing-library/react"},
	"act":        {module: "@testing-library/react"},
	"within":     {module: "@testing-library/react"},
	"cleanup":    {module: "@testing-library/react"},
	"userEvent":  {module: "@testing-library/user-event", defaultImport: true},
	"React":      {module: "react", defaultImport: true},
}

type typeHandler func(line string, d m.Diagnostic) (fix, bool)

// castCodes are the codes whose handlers add an "as any" cast.
var castCodes = map[m.TypeCode]bool{
	m.TypePropertyMissing:  true,
	m.TypePropertyMisspelt: true,
	m.TypeArgumentMismatch: true,
	m.TypeAssignMismatch:   true,
	m.TypeObjectUnknown:    true,
	m.TypeValueUnknown:     true,
}

var typeHandlers = map[m.TypeCode]typeHandler{
	m.TypePropertyMissing:  fixMissingMember,
	m.TypePropertyMisspelt: fixMissingMember,
	m.TypeArgumentMismatch: fixArgumentMismatch,
	m.TypeAssignMismatch:   fixAssignMismatch,
	m.TypeObjectUnknown:    fixUnknownValue,
	m.TypeValueUnknown:     fixUnknownValue,
	m.TypeImplicitAnyParam: fixImplicitAny,
}

// TypeFixGenerator repairs type-checker diagnostics with casts, annotations
// and imports.
type TypeFixGenerator struct{}

// NewTypeFixGenerator constructs a TypeFixGenerator.
func NewTypeFixGenerator() *TypeFixGenerator {
	return &TypeFixGenerator{}
}

// Engine implements Generator.
func (g *TypeFixGenerator) Engine() m.Engine {
	return m.EngineType
}

// Handles reports whether d is a type diagnostic with a handler.
func (g *TypeFixGenerator) Handles(d m.Diagnostic) bool {
	if d.Origin != m.EngineType {
		return false
	}

	code, ok := d.Code.TypeCode()
	if !ok {
		return false
	}

	if code == m.TypeNameNotFound {
		return true
	}

	_, ok = typeHandlers[code]

	return ok
}

// Generate folds every handled diagnostic of a line into one edit. Diagnostics
// on a line are applied right to left so earlier columns stay valid. Missing
// names are collected into a single import edit on line 1.
func (g *TypeFixGenerator) Generate(diags []m.Diagnostic, unit m.SourceUnit) []m.Edit {
	handled, _ := Handled(diags, g.Handles)
	sort.SliceStable(handled, func(i, j int) bool {
		a, b := handled[i], handled[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}

		if a.Column != b.Column {
			return a.Column > b.Column
		}

		if a.Code != b.Code {
			return a.Code < b.Code
		}

		return a.Message < b.Message
	})

	var (
		edits   []m.Edit
		missing []string
	)

	for i := 0; i < len(handled); {
		lineNo := handled[i].Line

		j := i
		for j < len(handled) && handled[j].Line == lineNo {
			j++
		}

		original, ok := unit.Line(lineNo)
		if ok {
			current := original
			var applied []fix

			for _, d := range handled[i:j] {
				code, _ := d.Code.TypeCode()
				if code == m.TypeNameNotFound {
					if sub := missingNameRe.FindStringSubmatch(d.Message); sub != nil {
						missing = append(missing, sub[1])
					}

					continue
				}

				// A line that was already cast is never cast again.
				if castCodes[code] && hasUnsafeCast(original) {
					continue
				}

				f, ok := typeHandlers[code](current, d)
				if !ok || f.text == current {
					continue
				}

				current = f.text
				applied = append(applied, f)
			}

			if len(applied) > 0 {
				edits = append(edits, newEdit(unit, lineNo, original, mergeFixes(current, applied), m.EngineType))
			}
		}

		i = j
	}

	f, ok := importFix(unit, missing)
	if !ok {
		return edits
	}

	// Edits are in line order; a folded line-1 edit takes the imports in front.
	if len(edits) > 0 && edits[0].Line == 1 {
		first := &edits[0]
		first.NewText = f.text + "\n" + first.NewText
		first.Confidence = min(first.Confidence, f.confidence)
		first.Description = f.description + "; " + first.Description

		return edits
	}

	first, _ := unit.Line(1)
	f.text += "\n" + first

	return append([]m.Edit{newEdit(unit, 1, first, f, m.EngineType)}, edits...)
}

// mergeFixes keeps the lowest confidence and the first fix type of a folded line.
func mergeFixes(text string, fixes []fix) fix {
	out := fixes[0]
	out.text = text

	descriptions := make([]string, 0, len(fixes))
	for _, f := range fixes {
		if f.confidence < out.confidence {
			out.confidence = f.confidence
		}

		descriptions = append(descriptions, f.description)
	}

	out.description = strings.Join(descriptions, "; ")

	return out
}

func fixMissingMember(line string, d m.Diagnostic) (fix, bool) {
	sub := propertyRe.FindStringSubmatch(d.Message)
	if sub == nil {
		return fix{}, false
	}

	prop := sub[1]
	at := memberAccess(line, prop, d.Column-1)
	if at < 0 {
		return fix{}, false
	}

	// at is the index of the '.' before prop; optional chaining keeps its '?'.
	end := at
	if end > 0 && line[end-1] == '?' {
		end--
	}

	start := receiverStart(line, end)
	if start == end {
		return fix{}, false
	}

	recv := line[start:end]

	return fix{
		text:        line[:start] + "(" + recv + " as any)" + line[end:],
		confidence:  confidenceMemberCast,
		fixType:     m.FixTypeAssertion,
		description: fmt.Sprintf("cast receiver of %q to any", prop),
	}, true
}

// memberAccess returns the index of the '.' in ".prop", preferring the
// occurrence whose property starts at col.
func memberAccess(line, prop string, col int) int {
	first := -1

	for from := 0; from < len(line); {
		idx := strings.Index(line[from:], "."+prop)
		if idx < 0 {
			break
		}

		dot := from + idx
		after := dot + 1 + len(prop)
		from = dot + 1

		if after < len(line) && isIdentByte(line[after]) {
			continue
		}

		if dot+1 == col {
			return dot
		}

		if first < 0 {
			first = dot
		}
	}

	return first
}

// receiverStart scans left from end over an identifier chain with balanced
// calls and index expressions.
func receiverStart(line string, end int) int {
	depth := 0
	i := end

	for i > 0 {
		c := line[i-1]

		switch {
		case c == ')' || c == ']':
			depth++
		case (c == '(' || c == '[') && depth > 0:
			depth--
		case depth > 0:
		case isIdentByte(c) || c == '.':
		default:
			return i
		}

		i--
	}

	if depth != 0 {
		return end
	}

	return i
}

func fixArgumentMismatch(line string, d m.Diagnostic) (fix, bool) {
	start, end := argumentAt(line, d.Column-1)
	if start < 0 {
		idx := strings.Index(line, "expect(")
		if idx < 0 {
			return fix{}, false
		}

		start, end = argumentAt(line, idx+len("expect("))
	}

	if start < 0 {
		return fix{}, false
	}

	arg := line[start:end]

	return fix{
		text:        line[:start] + arg + " as any" + line[end:],
		confidence:  confidenceArgumentCast,
		fixType:     m.FixTypeAssertion,
		description: fmt.Sprintf("cast argument %q to any", arg),
	}, true
}

// argumentAt returns the trimmed extent of the call argument starting at col,
// ending at the next top-level ',' or the closing ')'.
func argumentAt(line string, col int) (int, int) {
	if col < 0 || col >= len(line) {
		return -1, -1
	}

	for col < len(line) && line[col] == ' ' {
		col++
	}

	depth := 0
	var quote byte

	for i := col; i < len(line); i++ {
		c := line[i]

		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}

			continue
		}

		switch c {
		case '\'', '"', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return trimmedExtent(line, col, i)
			}

			depth--
		case ',', ';':
			if depth == 0 {
				return trimmedExtent(line, col, i)
			}
		}
	}

	return -1, -1
}

func trimmedExtent(line string, start, end int) (int, int) {
	for end > start && line[end-1] == ' ' {
		end--
	}

	if end == start {
		return -1, -1
	}

	return start, end
}

func fixAssignMismatch(line string, _ m.Diagnostic) (fix, bool) {
	if loc := mockValueRe.FindStringSubmatchIndex(line); loc != nil {
		open := loc[1]

		start, end := argumentAt(line, open)
		if start < 0 {
			return fix{}, false
		}

		method := line[loc[2]:loc[3]]

		return fix{
			text:        line[:start] + line[start:end] + " as any" + line[end:],
			confidence:  confidenceAssignCast,
			fixType:     m.FixTypeAssertion,
			description: fmt.Sprintf("cast %s value to any", method),
		}, true
	}

	sub := typedAssignRe.FindStringSubmatch(line)
	if sub == nil {
		return fix{}, false
	}

	return fix{
		text:        sub[1] + "(" + sub[2] + ") as any" + sub[3],
		confidence:  confidenceAssignCast,
		fixType:     m.FixTypeAssertion,
		description: "cast assigned value to any",
	}, true
}

func fixUnknownValue(line string, d m.Diagnostic) (fix, bool) {
	name := ""
	if sub := unknownValueRe.FindStringSubmatch(d.Message); sub != nil {
		name = sub[1]
	} else {
		name = identifierAt(line, d.Column-1)
	}

	if name == "" {
		return fix{}, false
	}

	re := regexp.MustCompile(`(^|[^\w$.])` + regexp.QuoteMeta(name) + `(\??\.|\[)`)

	loc := re.FindStringSubmatchIndex(line)
	if loc == nil {
		return fix{}, false
	}

	start, end := loc[3], loc[4]

	return fix{
		text:        line[:start] + "(" + line[start:end] + " as any)" + line[end:],
		confidence:  confidenceUnknownCast,
		fixType:     m.FixTypeAssertion,
		description: fmt.Sprintf("narrow unknown %q with a cast", name),
	}, true
}

func identifierAt(line string, col int) string {
	if col < 0 || col >= len(line) {
		return ""
	}

	end := col
	for end < len(line) && isIdentByte(line[end]) {
		end++
	}

	return line[col:end]
}

func fixImplicitAny(line string, d m.Diagnostic) (fix, bool) {
	sub := implicitParamRe.FindStringSubmatch(d.Message)
	if sub == nil {
		return fix{}, false
	}

	name := regexp.QuoteMeta(sub[1])

	if regexp.MustCompile(`(^|[^\w$.])` + name + `\??\s*:`).MatchString(line) {
		return fix{}, false
	}

	bare := regexp.MustCompile(`(^|[^\w$.])(` + name + `)\s*=>`)
	if loc := bare.FindStringSubmatchIndex(line); loc != nil {
		start, end := loc[4], loc[5]

		return fix{
			text:        line[:start] + "(" + line[start:end] + ": any)" + line[end:],
			confidence:  confidenceAnnotation,
			fixType:     m.FixTypeAnnotation,
			description: fmt.Sprintf("annotate parameter %q as any", sub[1]),
		}, true
	}

	inList := regexp.MustCompile(`([(,]\s*(?:\.\.\.)?)(` + name + `)(\s*[,)=])`)
	loc := inList.FindStringSubmatchIndex(line)
	if loc == nil {
		return fix{}, false
	}

	end := loc[5]

	return fix{
		text:        line[:end] + ": any" + line[end:],
		confidence:  confidenceAnnotation,
		fixType:     m.FixTypeAnnotation,
		description: fmt.Sprintf("annotate parameter %q as any", sub[1]),
	}, true
}

// importFix builds the import lines for every known missing name that the
// text does not import yet.
func importFix(unit m.SourceUnit, names []string) (fix, bool) {
	if len(names) == 0 {
		return fix{}, false
	}

	vitest := vitestRe.MatchString(unit.Text)
	named := make(map[string][]string)
	defaults := make(map[string]string)
	seen := make(map[string]bool)

	for _, name := range names {
		spec, ok := knownImports[name]
		if !ok || seen[name] || isImported(unit.Text, name) {
			continue
		}

		seen[name] = true

		if vitest && spec.module == "@jest/globals" {
			if name == "jest" {
				continue
			}

			spec.module = "vitest"
		}

		if spec.defaultImport {
			defaults[spec.module] = name
		} else {
			named[spec.module] = append(named[spec.module], name)
		}
	}

	modules := make([]string, 0, len(named)+len(defaults))
	for mod := range named {
		modules = append(modules, mod)
	}

	for mod := range defaults {
		if _, ok := named[mod]; !ok {
			modules = append(modules, mod)
		}
	}

	if len(modules) == 0 {
		return fix{}, false
	}

	sort.Strings(modules)

	lines := make([]string, 0, len(modules))
	for _, mod := range modules {
		lines = append(lines, importLine(mod, defaults[mod], named[mod]))
	}

	return fix{
		text:        strings.Join(lines, "\n"),
		confidence:  confidenceImport,
		fixType:     m.FixImport,
		description: "import " + strings.Join(modules, ", "),
	}, true
}

func importLine(module, def string, names []string) string {
	sort.Strings(names)

	var clause string

	switch {
	case def != "" && len(names) > 0:
		clause = def + ", { " + strings.Join(names, ", ") + " }"
	case def != "":
		clause = def
	default:
		clause = "{ " + strings.Join(names, ", ") + " }"
	}

	return fmt.Sprintf("import %s from '%s';", clause, module)
}

func isImported(text, name string) bool {
	re := regexp.MustCompile(`(?m)^\s*import\s+[^;]*\b` + regexp.QuoteMeta(name) + `\b[^;]*\bfrom\b`)

	return re.MatchString(text)
}
