package main

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/manifest"
)

const (
	corePath   = "github.com/safeclick/safeclick"
	historyVar = "history"
	chatTag    = "chat"
)

// initialisms are rendered upper-case when they form a whole word of an identifier.
var initialisms = map[string]string{"id": "ID", "url": "URL", "soc": "SOC", "sms": "SMS", "uri": "URI"}

// payloadSpec is one generated payload struct.
type payloadSpec struct {
	name    string // registry name, e.g. "threat_analysis"
	fields  []fieldSpec
	history bool
}

type fieldSpec struct {
	goName  string
	varName string
	typ     func() *jen.Statement
}

// loadSpecs parses the base manifests at the root of fsys. Environment overlays
// ("name.env.yaml") share the base manifest's payload and are skipped.
func loadSpecs(fsys fs.FS) ([]payloadSpec, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var specs []payloadSpec
	for _, e := range entries {
		ext := path.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ext)
		if strings.Contains(base, ".") {
			continue
		}
		tpl, err := manifest.ParseFS(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		specs = append(specs, specFor(base, tpl))
	}
	slices.SortFunc(specs, func(a, b payloadSpec) int { return strings.Compare(a.name, b.name) })
	return specs, nil
}

func specFor(name string, tpl *safeclick.ChatPromptTemplate) payloadSpec {
	spec := payloadSpec{name: name, history: slices.Contains(tpl.Metadata.Tags, chatTag)}
	for _, v := range tpl.Variables() {
		if v == historyVar {
			continue
		}
		spec.fields = append(spec.fields, fieldSpec{
			goName:  camel(v),
			varName: v,
			typ:     typeOf(tpl.PartialVariables[v]),
		})
	}
	return spec
}

// typeOf picks the Go field type from a partial variable's default; variables without one are strings.
func typeOf(def any) func() *jen.Statement {
	switch def.(type) {
	case int, int64:
		return jen.Int
	case float64:
		return jen.Float64
	case bool:
		return jen.Bool
	case []any, []string:
		return func() *jen.Statement { return jen.Index().String() }
	}
	return jen.String
}

// camel converts a snake_case name to an exported Go identifier.
func camel(s string) string {
	var b strings.Builder
	for word := range strings.SplitSeq(s, "_") {
		if word == "" {
			continue
		}
		if up, ok := initialisms[strings.ToLower(word)]; ok {
			b.WriteString(up)
			continue
		}
		r := []rune(word)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// render builds the Go source for specs in package pkg.
func render(pkg string, specs []payloadSpec) *jen.File {
	f := jen.NewFile(pkg)
	f.ImportName(corePath, "safeclick")
	f.HeaderComment("Code generated by safeclick-gen. DO NOT EDIT.")

	names := make([]jen.Code, 0, len(specs))
	for _, s := range specs {
		names = append(names, jen.Id(camel(s.name)+"Prompt").Op("=").Lit(s.name))
	}
	f.Comment("Registry names of the embedded prompts.")
	f.Const().Defs(names...)

	for _, s := range specs {
		fields := make([]jen.Code, 0, len(s.fields)+1)
		for _, fld := range s.fields {
			fields = append(fields, jen.Id(fld.goName).Add(fld.typ()).Tag(map[string]string{"prompt": fld.varName}))
		}
		if s.history {
			fields = append(fields, jen.Id("History").Index().Qual(corePath, "ChatMessage").Tag(map[string]string{"prompt": historyVar}))
		}
		typeName := camel(s.name) + "Payload"
		f.Line()
		f.Commentf("%s binds the variables of the %s prompt.", typeName, s.name)
		f.Type().Id(typeName).Struct(fields...)
	}
	return f
}
