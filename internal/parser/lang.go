package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/unicore-dev/uce/internal/model"
)

// languageGrammar binds a tree-sitter grammar to the node-type
// classification for one language: which AST node kinds declare symbols,
// and what symbol kind each one produces.
type languageGrammar struct {
	grammar     *sitter.Language
	symbolKinds map[string]model.SymbolKind
}

var tsSymbolKinds = map[string]model.SymbolKind{
	"function_declaration":   model.SymbolKindFunction,
	"method_definition":      model.SymbolKindMethod,
	"class_declaration":      model.SymbolKindClass,
	"interface_declaration":  model.SymbolKindInterface,
	"type_alias_declaration": model.SymbolKindType,
	"enum_declaration":       model.SymbolKindEnum,
	"lexical_declaration":    model.SymbolKindConstant, // const and let
	"variable_declaration":   model.SymbolKindVariable, // var
}

var jsSymbolKinds = map[string]model.SymbolKind{
	"function_declaration": model.SymbolKindFunction,
	"function":             model.SymbolKindFunction,
	"method_definition":    model.SymbolKindMethod,
	"class_declaration":    model.SymbolKindClass,
	"lexical_declaration":  model.SymbolKindConstant,
	"variable_declaration": model.SymbolKindVariable,
}

// grammars maps a language name to its grammar binding. Markdown is
// deliberately absent: it has a dedicated section chunker and no symbol
// extraction.
var grammars = map[string]languageGrammar{
	"go": {golang.GetLanguage(), map[string]model.SymbolKind{
		"function_declaration": model.SymbolKindFunction,
		"method_declaration":   model.SymbolKindMethod,
		"type_declaration":     model.SymbolKindType,
		"const_declaration":    model.SymbolKindConstant,
		"var_declaration":      model.SymbolKindVariable,
	}},
	"typescript": {typescript.GetLanguage(), tsSymbolKinds},
	"tsx":        {tsx.GetLanguage(), tsSymbolKinds},
	"javascript": {javascript.GetLanguage(), jsSymbolKinds},
	"jsx":        {javascript.GetLanguage(), jsSymbolKinds},
	"python": {python.GetLanguage(), map[string]model.SymbolKind{
		"function_definition": model.SymbolKindFunction, // promoted to method when nested in a class
		"class_definition":    model.SymbolKindClass,
		"assignment":          model.SymbolKindVariable,
	}},
}

// languageGrammarFor returns the grammar binding for language, if one is
// compiled in.
func languageGrammarFor(language string) (languageGrammar, bool) {
	g, ok := grammars[language]
	return g, ok
}
