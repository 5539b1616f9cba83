package shader

// PreProcessorBuilderOption is a functional option for configuring a PreProcessor.
type PreProcessorBuilderOption func(*preProcessor)

// WithStruct registers a struct under key for @oxy:include and @oxy:group.
//
// Parameters:
//   - key: the annotation argument, lower snake case (e.g. "mesh_info")
//   - source: the WGSL struct definition
//   - typeName: the WGSL type name (e.g. "MeshInfo")
//
// Returns:
//   - PreProcessorBuilderOption: option function to apply
func WithStruct(key, source, typeName string) PreProcessorBuilderOption {
	return func(p *preProcessor) {
		p.structs[key] = Struct{Source: source, Type: typeName}
	}
}
