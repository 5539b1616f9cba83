package shader

import (
	"slices"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
)

const pointSource = "struct Point {\n    x: f32,\n}\n"

// go test -run ^TestProcessInjectsStructsAndDeclarations$ ./engine/shader -count 1
func TestProcessInjectsStructsAndDeclarations(t *testing.T) {
	src := strings.Join([]string{
		"@oxy:include point",
		"@oxy:include point",
		"@oxy:group 0 1 storage_read points array<point>",
		"@oxy:group 0 0 storage_uniform count u32",
		"@oxy:group 1 0 storage_read_write out array<u32>",
		"fn main() {}",
	}, "\n")

	p := NewPreProcessor(WithStruct("point", pointSource, "Point"))
	out, err := p.Process(src)
	if err != nil {
		t.Fatal(err)
	}

	if got := strings.Count(out, "struct Point"); got != 1 {
		t.Errorf("Expected the struct to be injected once, got %d", got)
	}
	for _, want := range []string{
		"@group(0) @binding(1) var<storage, read> points: array<Point>;",
		"@group(0) @binding(0) var<uniform> count: u32;",
		"@group(1) @binding(0) var<storage, read_write> out: array<u32>;",
		"fn main() {}",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, annotationPrefix) {
		t.Errorf("Expected no annotations left in the output")
	}
	if got := len(p.Declarations()); got != 3 {
		t.Errorf("Expected 3 declarations, got %d", got)
	}
}

// go test -run ^TestProcessErrors$ ./engine/shader -count 1
func TestProcessErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "empty", src: "@oxy:"},
		{name: "unknown type", src: "@oxy:bind 0 0"},
		{name: "unknown include", src: "@oxy:include nope"},
		{name: "include arity", src: "@oxy:include point extra"},
		{name: "group arity", src: "@oxy:group 0 0 storage_read points"},
		{name: "bad group", src: "@oxy:group x 0 storage_read points u32"},
		{name: "bad address space", src: "@oxy:group 0 0 private points u32"},
		{name: "unknown struct", src: "@oxy:group 0 0 storage_read points array<nope>"},
		{name: "struct before include", src: "@oxy:group 0 0 storage_read points array<point>"},
		{name: "duplicate binding", src: "@oxy:group 0 0 storage_read a u32\n@oxy:group 0 0 storage_read b u32"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPreProcessor(WithStruct("point", pointSource, "Point"))
			if _, err := p.Process(tt.src); err == nil {
				t.Errorf("Expected an error for %q", tt.src)
			}
		})
	}
}

// go test -run ^TestProgramBindings$ ./engine/shader -count 1
func TestProgramBindings(t *testing.T) {
	prog := MustProcess(strings.Join([]string{
		"@oxy:group 2 1 storage_read_write out array<u32>",
		"@oxy:group 2 0 storage_uniform info u32",
		"@oxy:group 0 0 storage_read data array<u32>",
	}, "\n"))

	want := []gpu.DescriptorBinding{
		{Binding: 0, Kind: gpu.DescriptorUniformBuffer},
		{Binding: 1, Kind: gpu.DescriptorStorageBuffer},
	}
	if got := prog.Bindings(2); !slices.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if got := prog.Bindings(1); len(got) != 0 {
		t.Errorf("Expected no bindings in group 1, got %v", got)
	}
}

// go test -run ^TestMustProcessPanics$ ./engine/shader -count 1
func TestMustProcessPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Expected MustProcess to panic on a malformed annotation")
		}
	}()
	MustProcess("@oxy:include nope")
}
