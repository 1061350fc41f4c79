package bdoc

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/bdoc/core/errors"
)

// selectorGrammar is the participle grammar for set selectors.
// Examples: "Original", "Original:Token,Sentence", ":Token;Key", `"My set":Person`
//
//nolint:govet // participle grammar tags are not standard struct tags
type selectorGrammar struct {
	Entries []*selectorEntry `@@ ( ";" @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type selectorEntry struct {
	Set   *string  `@(Ident | String)?`
	Types []string `( ":" @(Ident | String) ( "," @(Ident | String) )* )?`
}

const selectorIdentPattern = `[A-Za-z_][A-Za-z0-9_.\-]*`

var selectorIdent = regexp.MustCompile(`^` + selectorIdentPattern + `$`)

var selectorLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: selectorIdentPattern},
	{Name: "Punct", Pattern: `[:;,]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var selectorParser = participle.MustBuild[selectorGrammar](
	participle.Lexer(selectorLexer),
	participle.Unquote("String"),
	participle.Elide("Whitespace"),
)

// ParseSelector parses a set selector into SetSpecs.
// Supported forms:
//   - "Set" (whole set)
//   - "Set:TypeA,TypeB" (set restricted to types)
//   - ":Token" (default set restricted to Token)
//   - `"Name with spaces"` (quoted names)
//   - entries separated by ";"
//
// An empty selector yields nil, which callers treat as "all sets".
func ParseSelector(s string) ([]SetSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parsed, err := selectorParser.ParseString("", s)
	if err != nil {
		return nil, errors.NewParse("selector", "", fmt.Sprintf("invalid selector %q: %v", s, err))
	}

	specs := make([]SetSpec, 0, len(parsed.Entries))
	for _, e := range parsed.Entries {
		spec := SetSpec{Types: e.Types}
		if e.Set != nil {
			spec.Name = *e.Set
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// FormatSelector renders specs in the syntax accepted by ParseSelector.
func FormatSelector(specs []SetSpec) string {
	parts := make([]string, len(specs))
	for i, spec := range specs {
		parts[i] = spec.String()
	}
	return strings.Join(parts, ";")
}
