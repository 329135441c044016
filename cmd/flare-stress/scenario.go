package main

import (
	"fmt"
	"os"

	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/particle"
	"gopkg.in/yaml.v3"
)

// Scenario describes the scene a stress run builds.
type Scenario struct {
	Name     string        `yaml:"name"`
	World    [4]float64    `yaml:"world"` // x, y, width, height
	Cameras  [][4]float64  `yaml:"cameras"`
	Textures int           `yaml:"textures"`
	Sprites  int           `yaml:"sprites"`
	Emitters []EmitterSpec `yaml:"emitters"`
}

// EmitterSpec is a group of identical emitters scattered over the world.
type EmitterSpec struct {
	Count        int        `yaml:"count"`
	RenderType   string     `yaml:"render_type"`
	Lifetime     float64    `yaml:"lifetime"`
	EmissionRate float64    `yaml:"emission_rate"`
	Bounds       float64    `yaml:"bounds"`
	Speed        [2]float64 `yaml:"speed"`
	Spread       float64    `yaml:"spread"`
	Gravity      [2]float64 `yaml:"gravity"`
	Drag         float64    `yaml:"drag"`
	Fade         bool       `yaml:"fade"`
}

// defaultScenario spawns roughly 150k particles a second against the
// configured pool so that emission is starved.
func defaultScenario() *Scenario {
	return &Scenario{
		Name:     "saturation",
		World:    [4]float64{0, 0, 4096, 4096},
		Cameras:  [][4]float64{{0, 0, 4096, 4096}},
		Textures: 4,
		Sprites:  5000,
		Emitters: []EmitterSpec{
			{
				Count:        100,
				RenderType:   "additive",
				Lifetime:     1,
				EmissionRate: 1500,
				Speed:        [2]float64{20, 120},
				Spread:       3.14159,
				Drag:         0.8,
				Fade:         true,
			},
		},
	}
}

func loadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	sc := &Scenario{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

func (s *Scenario) validate() error {
	if s.World[2] <= 0 || s.World[3] <= 0 {
		return fmt.Errorf("world size %vx%v", s.World[2], s.World[3])
	}
	if s.Textures <= 0 {
		return fmt.Errorf("textures %d", s.Textures)
	}
	for i, e := range s.Emitters {
		if _, err := particle.ParseRenderType(e.RenderType); err != nil {
			return fmt.Errorf("emitter %d: %w", i, err)
		}
		if e.Count < 0 || e.Lifetime < 0 || e.EmissionRate < 0 {
			return fmt.Errorf("emitter %d: negative count, lifetime or rate", i)
		}
	}
	return nil
}

func (s *Scenario) world() geom.Rect {
	return geom.XYWH(s.World[0], s.World[1], s.World[2], s.World[3])
}

func (s *Scenario) views() []geom.Rect {
	views := make([]geom.Rect, len(s.Cameras))
	for i, c := range s.Cameras {
		views[i] = geom.XYWH(c[0], c[1], c[2], c[3])
	}
	return views
}

// spawnRate is the total number of particles the scenario asks for per
// second.
func (s *Scenario) spawnRate() float64 {
	var rate float64
	for _, e := range s.Emitters {
		rate += float64(e.Count) * e.EmissionRate
	}
	return rate
}
