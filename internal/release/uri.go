package release

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

/*
Parser for registry model URIs:

URI     := "models:/" <name> Target
Target  := "/" <version> | "@" <alias>

Names, versions and aliases may not contain '/', '@' or whitespace.
*/

var (
	uriLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Scheme", Pattern: `models:/`},
		{Name: "Ident", Pattern: `[^/@\s]+`},
		{Name: "Punct", Pattern: `[/@]`},
	})

	uriParser = participle.MustBuild[modelURI](
		participle.Lexer(uriLexer),
	)
)

type modelURI struct {
	Name   string     `Scheme @Ident`
	Target *uriTarget `@@`
}

type uriTarget struct {
	Version *string `  "/" @Ident`
	Alias   *string `| "@" @Ident`
}

// ModelURI references a registry model either by version or by alias.
type ModelURI struct {
	ModelName string
	Version   string
	Alias     string
}

func ParseModelURI(uri string) (ModelURI, error) {
	parsed, err := uriParser.ParseString("", uri)
	if err != nil {
		return ModelURI{}, fmt.Errorf("error parsing model uri '%s': %w", uri, err)
	}

	out := ModelURI{ModelName: parsed.Name}
	switch {
	case parsed.Target.Version != nil:
		out.Version = *parsed.Target.Version
	case parsed.Target.Alias != nil:
		out.Alias = *parsed.Target.Alias
	}
	return out, nil
}

// Ref is the version reference, when the URI names a version.
func (u ModelURI) Ref() (ModelVersionRef, bool) {
	if u.Version == "" {
		return ModelVersionRef{}, false
	}
	return ModelVersionRef{ModelName: u.ModelName, Version: u.Version}, true
}

func (u ModelURI) String() string {
	if u.Alias != "" {
		return fmt.Sprintf("models:/%s@%s", u.ModelName, u.Alias)
	}
	return fmt.Sprintf("models:/%s/%s", u.ModelName, u.Version)
}
