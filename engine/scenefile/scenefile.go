// Package scenefile loads YAML scene descriptions and spawns their entities into a registry.
package scenefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-ecs/common"
	"github.com/Carmen-Shannon/oxy-ecs/engine/camera"
	"github.com/Carmen-Shannon/oxy-ecs/engine/light"
	"github.com/Carmen-Shannon/oxy-ecs/engine/material"
	"github.com/Carmen-Shannon/oxy-ecs/engine/mesh"
	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/Carmen-Shannon/oxy-ecs/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScene is returned for scene entries that cannot be turned into components.
var ErrInvalidScene = errors.New("invalid scene")

// Scene is a parsed scene file.
type Scene struct {
	Name     string        `yaml:"name"`
	Entities []EntityEntry `yaml:"entities"`

	// dir resolves relative texture paths.
	dir string
}

// EntityEntry describes one entity. Every entity gets a Transform.
type EntityEntry struct {
	Name      string         `yaml:"name"`
	Transform TransformEntry `yaml:"transform"`
	Mesh      *MeshEntry     `yaml:"mesh"`
	Material  *MaterialEntry `yaml:"material"`
	Light     *LightEntry    `yaml:"light"`
	Camera    *CameraEntry   `yaml:"camera"`
}

type TransformEntry struct {
	Position []float32 `yaml:"position"`
	Rotation []float32 `yaml:"rotation"` // euler angles in degrees, XYZ order
	Scale    []float32 `yaml:"scale"`
	Static   bool      `yaml:"static"`
}

type MeshEntry struct {
	Primitive string `yaml:"primitive"`
	Static    bool   `yaml:"static"`
	Disabled  bool   `yaml:"disabled"`
}

type MaterialEntry struct {
	Color     []float32 `yaml:"color"`
	Metallic  float32   `yaml:"metallic"`
	Roughness *float32  `yaml:"roughness"`
	Albedo    string    `yaml:"albedo"` // image path, relative to the scene file
}

type LightEntry struct {
	Type      string    `yaml:"type"`
	Color     []float32 `yaml:"color"`
	Intensity *float32  `yaml:"intensity"`
	Range     *float32  `yaml:"range"`
	Static    bool      `yaml:"static"`
}

type CameraEntry struct {
	Fov  float32 `yaml:"fov"`
	Near float32 `yaml:"near"`
	Far  float32 `yaml:"far"`
}

// Load reads and parses the scene file at path.
func Load(path string) (*Scene, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	s, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// Parse parses a scene document. Relative texture paths resolve against the working directory.
func Parse(raw []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	return &s, nil
}

// Spawn creates one entity per scene entry. Entries are validated before any entity is created,
// so a bad scene leaves the registry untouched.
//
// Parameters:
//   - r: the registry to spawn into
//
// Returns:
//   - []registry.EntityID: the spawned entities in file order
//   - error: ErrInvalidScene for malformed entries, or the registry's attach error
func (s *Scene) Spawn(r registry.Registry) ([]registry.EntityID, error) {
	built := make([][]registry.Component, len(s.Entities))
	for i, e := range s.Entities {
		components, err := s.components(e)
		if err != nil {
			return nil, fmt.Errorf("entity %d (%s): %w", i, e.Name, err)
		}
		built[i] = components
	}

	ids := make([]registry.EntityID, 0, len(built))
	for i, components := range built {
		id := r.CreateEntity()
		for _, c := range components {
			if err := r.AddComponent(id, c); err != nil {
				return ids, fmt.Errorf("entity %d (%s): %w", i, s.Entities[i].Name, err)
			}
		}
		ids = append(ids, id)
	}
	r.Logger().Info("scene spawned", zap.String("scene", s.Name), zap.Int("entities", len(ids)))
	return ids, nil
}

// components builds the components of e in attach order, Transform first.
func (s *Scene) components(e EntityEntry) ([]registry.Component, error) {
	tr, err := buildTransform(e.Transform)
	if err != nil {
		return nil, err
	}
	out := []registry.Component{tr}

	if e.Mesh != nil {
		p, err := mesh.ParsePrimitive(e.Mesh.Primitive)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScene, err)
		}
		opts := []mesh.MeshBuilderOption{mesh.WithLabel(e.Name), mesh.WithPrimitive(p)}
		if e.Mesh.Static {
			opts = append(opts, mesh.WithStatic())
		}
		if e.Mesh.Disabled {
			opts = append(opts, mesh.WithDisabled())
		}
		out = append(out, mesh.NewMesh(opts...))
	}

	if e.Material != nil {
		m, err := s.buildMaterial(e.Name, *e.Material)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	if e.Light != nil {
		l, err := buildLight(e.Name, *e.Light)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}

	if e.Camera != nil {
		var opts []camera.CameraBuilderOption
		if e.Camera.Fov > 0 {
			opts = append(opts, camera.WithFov(e.Camera.Fov))
		}
		if e.Camera.Near > 0 || e.Camera.Far > 0 {
			near := common.Coalesce(e.Camera.Near, camera.DefaultNear)
			far := common.Coalesce(e.Camera.Far, camera.DefaultFar)
			if near >= far {
				return nil, fmt.Errorf("%w: camera near %v must be below far %v", ErrInvalidScene, near, far)
			}
			opts = append(opts, camera.WithClip(near, far))
		}
		out = append(out, camera.NewCamera(opts...))
	}
	return out, nil
}

func buildTransform(e TransformEntry) (*transform.Transform, error) {
	position, err := vec3("position", e.Position, mgl32.Vec3{})
	if err != nil {
		return nil, err
	}
	euler, err := vec3("rotation", e.Rotation, mgl32.Vec3{})
	if err != nil {
		return nil, err
	}
	scale, err := vec3("scale", e.Scale, mgl32.Vec3{1, 1, 1})
	if err != nil {
		return nil, err
	}
	rotation := mgl32.AnglesToQuat(
		mgl32.DegToRad(euler[0]), mgl32.DegToRad(euler[1]), mgl32.DegToRad(euler[2]), mgl32.XYZ)

	opts := []transform.TransformBuilderOption{
		transform.WithPosition(position),
		transform.WithRotation(rotation),
		transform.WithScale(scale),
	}
	if e.Static {
		opts = append(opts, transform.WithStatic())
	}
	return transform.NewTransform(opts...), nil
}

func (s *Scene) buildMaterial(name string, e MaterialEntry) (*material.Material, error) {
	color, err := vec4("material color", e.Color, mgl32.Vec4{1, 1, 1, 1})
	if err != nil {
		return nil, err
	}
	opts := []material.MaterialBuilderOption{
		material.WithLabel(name),
		material.WithColor(color),
		material.WithMetallic(e.Metallic),
	}
	if e.Roughness != nil {
		opts = append(opts, material.WithRoughness(*e.Roughness))
	}
	if e.Albedo != "" {
		path := e.Albedo
		if !filepath.IsAbs(path) && s.dir != "" {
			path = filepath.Join(s.dir, path)
		}
		tex, err := common.LoadTexture(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, material.WithAlbedo(tex))
	}
	return material.NewMaterial(opts...), nil
}

func buildLight(name string, e LightEntry) (*light.Light, error) {
	t, err := light.ParseLightType(e.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScene, err)
	}
	opts := []light.LightBuilderOption{light.WithLabel(name), light.WithType(t)}
	if len(e.Color) > 0 {
		color, err := vec4("light color", e.Color, mgl32.Vec4{})
		if err != nil {
			return nil, err
		}
		opts = append(opts, light.WithColor(color))
	}
	if e.Intensity != nil {
		opts = append(opts, light.WithIntensity(*e.Intensity))
	}
	if e.Range != nil {
		if *e.Range < 0 {
			return nil, fmt.Errorf("%w: light range %v is negative", ErrInvalidScene, *e.Range)
		}
		opts = append(opts, light.WithRange(*e.Range))
	}
	if e.Static {
		opts = append(opts, light.WithStatic())
	}
	return light.NewLight(opts...), nil
}

func vec3(field string, v []float32, def mgl32.Vec3) (mgl32.Vec3, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 3:
		return mgl32.Vec3{v[0], v[1], v[2]}, nil
	}
	return def, fmt.Errorf("%w: %s needs 3 components, got %d", ErrInvalidScene, field, len(v))
}

// vec4 accepts RGB (alpha 1) or RGBA.
func vec4(field string, v []float32, def mgl32.Vec4) (mgl32.Vec4, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 3:
		return mgl32.Vec4{v[0], v[1], v[2], 1}, nil
	case 4:
		return mgl32.Vec4{v[0], v[1], v[2], v[3]}, nil
	}
	return def, fmt.Errorf("%w: %s needs 3 or 4 components, got %d", ErrInvalidScene, field, len(v))
}
