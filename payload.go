package safeclick

import (
	"reflect"
	"sync"
	"text/template/parse"
)

// historyType marks a payload field as conversation history rather than a template variable.
var historyType = reflect.TypeFor[[]ChatMessage]()

// fieldBinding maps one tagged struct field to a template variable or to the history slot.
type fieldBinding struct {
	index   int
	name    string
	history bool
}

var bindingCache sync.Map // reflect.Type -> []fieldBinding

// bindingsFor returns the prompt-tagged fields of struct type typ, cached per type.
func bindingsFor(typ reflect.Type) ([]fieldBinding, error) {
	if cached, ok := bindingCache.Load(typ); ok {
		return cached.([]fieldBinding), nil
	}
	var out []fieldBinding
	for i := range typ.NumField() {
		f := typ.Field(i)
		name := f.Tag.Get("prompt")
		if name == "" || name == "-" {
			continue
		}
		out = append(out, fieldBinding{index: i, name: name, history: f.Type == historyType})
	}
	if len(out) == 0 {
		return nil, ErrInvalidPayload
	}
	bindingCache.Store(typ, out)
	return out, nil
}

// getPayloadFields reads template variables and optional history from a struct (or pointer to struct)
// whose fields carry `prompt:"name"` tags.
func getPayloadFields(payload any) (map[string]any, []ChatMessage, error) {
	if payload == nil {
		return nil, nil, ErrInvalidPayload
	}
	v := reflect.ValueOf(payload)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil, ErrInvalidPayload
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, nil, ErrInvalidPayload
	}
	bindings, err := bindingsFor(v.Type())
	if err != nil {
		return nil, nil, err
	}
	vars := make(map[string]any, len(bindings))
	var history []ChatMessage
	for _, b := range bindings {
		field := v.Field(b.index)
		if !field.CanInterface() {
			continue
		}
		if b.history {
			history, _ = field.Interface().([]ChatMessage)
			continue
		}
		vars[b.name] = field.Interface()
	}
	return vars, history, nil
}

// children lists the sub-nodes of n that may reference variables.
func children(n parse.Node) []parse.Node {
	switch n := n.(type) {
	case *parse.ListNode:
		if n == nil {
			return nil
		}
		return n.Nodes
	case *parse.ActionNode:
		return []parse.Node{n.Pipe}
	case *parse.PipeNode:
		if n == nil {
			return nil
		}
		out := make([]parse.Node, 0, len(n.Cmds))
		for _, c := range n.Cmds {
			out = append(out, c)
		}
		return out
	case *parse.CommandNode:
		return n.Args
	case *parse.IfNode:
		return []parse.Node{n.Pipe, n.List, n.ElseList}
	case *parse.RangeNode:
		return []parse.Node{n.Pipe, n.List, n.ElseList}
	case *parse.WithNode:
		return []parse.Node{n.Pipe, n.List, n.ElseList}
	}
	return nil
}

func isNilNode(n parse.Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// extractVarsFromTree collects top-level variable names referenced by a template (".user_name" -> "user_name").
func extractVarsFromTree(tree *parse.Tree) []string {
	if tree == nil || tree.Root == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	stack := []parse.Node{tree.Root}
	for len(stack) > 0 {
		n := stack[0]
		stack = stack[1:]
		if isNilNode(n) {
			continue
		}
		if fn, ok := n.(*parse.FieldNode); ok && len(fn.Ident) > 0 && !seen[fn.Ident[0]] {
			seen[fn.Ident[0]] = true
			out = append(out, fn.Ident[0])
		}
		stack = append(stack, children(n)...)
	}
	return out
}

// extractRequiredVarsFromParsed returns the variables of non-optional messages in first-seen order.
func extractRequiredVarsFromParsed(parsed []parsedMessage) []string {
	var all []string
	for _, pm := range parsed {
		if pm.optional {
			continue
		}
		all = append(all, pm.vars...)
	}
	return mergeRequiredVars(nil, all)
}
