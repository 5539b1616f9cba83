// annotations.go defines the @oxy: annotation grammar understood by the pre-processor.
//
//	@oxy:include <struct key>
//	@oxy:group <group> <binding> <address space> <var name> <type>
//
// <type> is a struct key, array<struct key>, or any WGSL type spelled out verbatim (u32,
// array<u32>).
package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
)

const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation on a line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects a registered struct source. Each struct is injected at most
	// once per Process call.
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates an @group/@binding variable declaration and records it.
	AnnotationTypeBindingGroup AnnotationType = "group"
)

// AddressSpace is the storage class of a bound variable.
type AddressSpace string

const (
	AddressSpaceUniform          AddressSpace = "storage_uniform"
	AddressSpaceStorageRead      AddressSpace = "storage_read"
	AddressSpaceStorageReadWrite AddressSpace = "storage_read_write"
)

// WGSL returns the var<> syntax of the address space.
func (a AddressSpace) WGSL() string {
	switch a {
	case AddressSpaceUniform:
		return "var<uniform>"
	case AddressSpaceStorageRead:
		return "var<storage, read>"
	}
	return "var<storage, read_write>"
}

// DescriptorKind returns the descriptor binding kind a variable in this address space needs.
func (a AddressSpace) DescriptorKind() gpu.DescriptorKind {
	switch a {
	case AddressSpaceUniform:
		return gpu.DescriptorUniformBuffer
	case AddressSpaceStorageRead:
		return gpu.DescriptorReadOnlyStorageBuffer
	}
	return gpu.DescriptorStorageBuffer
}

func (a AddressSpace) valid() bool {
	switch a {
	case AddressSpaceUniform, AddressSpaceStorageRead, AddressSpaceStorageReadWrite:
		return true
	}
	return false
}

// Annotation is one parsed @oxy: line. Group, Binding, Space, Name and ValueType are only set
// for AnnotationTypeBindingGroup.
type Annotation struct {
	Type      AnnotationType
	Line      int
	Key       string // include: the struct key
	Group     uint32
	Binding   uint32
	Space     AddressSpace
	Name      string
	ValueType string // the unresolved type argument
}

// parseAnnotation parses line, returning nil for lines without an annotation.
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	_, after, ok := strings.Cut(strings.TrimSpace(line), annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy:include requires exactly one argument", lineNum)
		}
		return &Annotation{Type: AnnotationTypeInclude, Line: lineNum, Key: args[1]}, nil
	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy:group requires group, binding, address space, name and type", lineNum)
		}
		group, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q: %w", lineNum, args[1], err)
		}
		binding, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q: %w", lineNum, args[2], err)
		}
		space := AddressSpace(args[3])
		if !space.valid() {
			return nil, fmt.Errorf("line %d: unknown address space %q", lineNum, args[3])
		}
		return &Annotation{
			Type:      AnnotationTypeBindingGroup,
			Line:      lineNum,
			Group:     uint32(group),
			Binding:   uint32(binding),
			Space:     space,
			Name:      args[4],
			ValueType: args[5],
		}, nil
	}
	return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
}
