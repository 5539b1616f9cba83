package shader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
)

// Struct is a WGSL struct definition available to @oxy:include and @oxy:group.
type Struct struct {
	// Source is the WGSL struct definition injected by @oxy:include.
	Source string

	// Type is the WGSL type name emitted in generated declarations.
	Type string
}

// PreProcessor replaces @oxy: annotations in WGSL source with struct definitions and generated
// binding declarations, collecting the declarations for descriptor layout construction.
type PreProcessor interface {
	// Process pre-processes source. The declarations list is reset at the start of each call.
	//
	// Parameters:
	//   - source: WGSL source containing @oxy: annotations
	//
	// Returns:
	//   - string: the processed WGSL
	//   - error: an error naming the line of a malformed annotation or unknown struct key
	Process(source string) (string, error)

	// Declarations returns the @oxy:group annotations of the last Process call in source order.
	//
	// Returns:
	//   - []Annotation: the collected declarations
	Declarations() []Annotation
}

type preProcessor struct {
	structs      map[string]Struct
	included     map[string]bool
	declarations []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor knowing the given struct keys.
//
// Parameters:
//   - options: WithStruct options registering the includable structs
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor(options ...PreProcessorBuilderOption) PreProcessor {
	p := &preProcessor{structs: make(map[string]Struct)}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	p.included = make(map[string]bool)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			entry, ok := p.structs[a.Key]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", a.Line, a.Key)
			}
			if !p.included[a.Key] {
				p.included[a.Key] = true
				out = append(out, entry.Source)
			}
		case AnnotationTypeBindingGroup:
			wgslType, err := p.resolve(a.ValueType)
			if err != nil {
				return "", fmt.Errorf("line %d: %w", a.Line, err)
			}
			for _, d := range p.declarations {
				if d.Group == a.Group && d.Binding == a.Binding {
					return "", fmt.Errorf("line %d: group %d binding %d already declared on line %d",
						a.Line, a.Group, a.Binding, d.Line)
				}
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				a.Group, a.Binding, a.Space.WGSL(), a.Name, wgslType))
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

// resolve maps a type argument onto WGSL. Struct keys must have been included already so the
// generated declaration never precedes its struct.
func (p *preProcessor) resolve(arg string) (string, error) {
	if inner, ok := strings.CutPrefix(arg, "array<"); ok {
		inner = strings.TrimSuffix(inner, ">")
		elem, err := p.resolve(inner)
		if err != nil {
			return "", err
		}
		return "array<" + elem + ">", nil
	}
	if builtinType(arg) {
		return arg, nil
	}
	entry, ok := p.structs[arg]
	if !ok {
		return "", fmt.Errorf("unknown struct key %q", arg)
	}
	if !p.included[arg] {
		return "", fmt.Errorf("struct %q used before its @oxy:include", arg)
	}
	return entry.Type, nil
}

func builtinType(t string) bool {
	switch t {
	case "u32", "i32", "f32", "bool":
		return true
	}
	return strings.HasPrefix(t, "vec") || strings.HasPrefix(t, "mat")
}

func (p *preProcessor) Declarations() []Annotation {
	return slices.Clone(p.declarations)
}

// Program is a processed shader and the layouts its declarations require.
type Program struct {
	Source       string
	Declarations []Annotation
}

// MustProcess pre-processes source with a fresh PreProcessor and panics on error. Intended for
// package-level shader variables built from embedded assets.
//
// Parameters:
//   - source: WGSL source containing @oxy: annotations
//   - options: WithStruct options registering the includable structs
//
// Returns:
//   - Program: the processed source and its declarations
func MustProcess(source string, options ...PreProcessorBuilderOption) Program {
	p := NewPreProcessor(options...)
	out, err := p.Process(source)
	if err != nil {
		panic(fmt.Sprintf("shader: %v", err))
	}
	return Program{Source: out, Declarations: p.Declarations()}
}

// Bindings returns the descriptor bindings of one bind group, ordered by binding number.
//
// Parameters:
//   - group: the bind group index
//
// Returns:
//   - []gpu.DescriptorBinding: the bindings declared for group
func (p Program) Bindings(group uint32) []gpu.DescriptorBinding {
	var out []gpu.DescriptorBinding
	for _, d := range p.Declarations {
		if d.Group == group {
			out = append(out, gpu.DescriptorBinding{Binding: d.Binding, Kind: d.Space.DescriptorKind()})
		}
	}
	slices.SortFunc(out, func(a, b gpu.DescriptorBinding) int { return int(a.Binding) - int(b.Binding) })
	return out
}
