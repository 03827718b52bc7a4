package collect

import (
	"slices"
	"strings"
)

// Kind tells how a tracked construct is used in source.
type Kind uint8

const (
	// ComponentKind constructs are JSX tags: <Box color="red" />.
	ComponentKind Kind = iota
	// FunctionKind constructs are calls taking a props object: css({color: "red"}).
	FunctionKind
)

func (k Kind) String() string {
	if k == FunctionKind {
		return "function"
	}
	return "component"
}

// Props selects the properties of a construct that are extracted.
type Props struct {
	All   bool
	Names []string
}

// AllProps selects every property.
func AllProps() Props { return Props{All: true} }

// PropList selects the named properties.
func PropList(names ...string) Props { return Props{Names: slices.Clone(names)} }

func (p Props) Has(name string) bool {
	return p.All || slices.Contains(p.Names, name)
}

func (p Props) String() string {
	if p.All {
		return "all"
	}
	return "[" + strings.Join(p.Names, ", ") + "]"
}

// Construct is a tracked component or function.
type Construct struct {
	// Name is matched against the tag or callee: "Box", or "ui.Box" for a
	// member tag. A plain name also matches the last segment of a member
	// tag.
	Name  string
	Kind  Kind
	Props Props
	// Module, if set, is the specifier Name must be imported from.
	Module string
}

// Components returns constructs tracking every property of the named
// components.
func Components(names ...string) []Construct {
	return constructs(ComponentKind, names)
}

// Functions returns constructs tracking every property of the named
// functions.
func Functions(names ...string) []Construct {
	return constructs(FunctionKind, names)
}

func constructs(kind Kind, names []string) []Construct {
	out := make([]Construct, len(names))
	for i, n := range names {
		out[i] = Construct{Name: n, Kind: kind, Props: AllProps()}
	}
	return out
}
