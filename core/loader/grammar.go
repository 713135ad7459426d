package loader

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// sourceFile is the participle grammar for a Metamath source file: a flat
// list of comments, inclusions, scope brackets and statements. Scope nesting
// and every semantic rule are left to the kernel.
//
//nolint:govet // participle grammar tags are not standard struct tags
type sourceFile struct {
	Items []*item `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type item struct {
	Pos lexer.Position

	Comment *string      `  @Comment`
	Include *string      `| @Include`
	Block   string       `| @( "${" | "$}" )`
	Decl    *declaration `| @@`
	Stmt    *statement   `| @@`
}

// declaration is a $c, $v or $d list.
//
//nolint:govet // participle grammar tags are not standard struct tags
type declaration struct {
	Keyword string   `@( "$c" | "$v" | "$d" )`
	Symbols []string `@Word* "$."`
}

// statement is a labeled $f, $e, $a or $p statement. Proof holds the "$="
// marker followed by the proof words, or nothing when the statement has no
// proof part.
//
//nolint:govet // participle grammar tags are not standard struct tags
type statement struct {
	Label   string   `@Word`
	Keyword string   `@( "$f" | "$e" | "$a" | "$p" )`
	Symbols []string `@Word*`
	Proof   []string `( @"$=" @Word* )? "$."`
}

// mmLexer tokenizes Metamath source. Comments and inclusions are single
// tokens so their bodies never reach the statement rules. Words are runs of
// printable ASCII other than '$'.
var mmLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `\$\([\s\S]*?\$\)`},
	{Name: "Include", Pattern: `\$\[[\s\S]*?\$\]`},
	{Name: "Keyword", Pattern: `\$[cvdfeap=.{}]`},
	{Name: "Word", Pattern: `[!-#%-~]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// mmParser is the participle parser for Metamath source.
var mmParser = participle.MustBuild[sourceFile](
	participle.Lexer(mmLexer),
	participle.Elide("Whitespace"),
)
