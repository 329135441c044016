package main

import (
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"time"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/plus3/flare/config"
	"github.com/plus3/flare/debugui"
	debugui_ebiten "github.com/plus3/flare/debugui/ebiten"
	"github.com/plus3/flare/drawcall"
	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/particle"
	"github.com/plus3/flare/render"
	"github.com/plus3/flare/render/ebitengpu"
	"github.com/plus3/flare/spatial"
	"go.uber.org/zap"
)

const (
	ScreenWidth  = 1280
	ScreenHeight = 720
	WorldWidth   = 2048
	WorldHeight  = 2048
	CellSize     = 32
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML engine config.")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	log, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	imguiBackend := debugui_ebiten.NewImguiBackend("Flare - Particle Demo", ScreenWidth, ScreenHeight)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	game, err := newGame(cfg, log, imguiBackend)
	if err != nil {
		log.Fatal("failed to build scene", zap.Error(err))
	}

	if err := ebiten.RunGame(game); err != nil {
		log.Fatal("game exited", zap.Error(err))
	}
}

// Camera maps a world region onto the screen.
type Camera struct {
	X, Y    float64
	Zoom    float64
	ScreenW int
	ScreenH int
}

func (c *Camera) View() geom.Rect {
	return geom.XYWH(c.X, c.Y, float64(c.ScreenW)/c.Zoom, float64(c.ScreenH)/c.Zoom)
}

// GeoM returns the world to screen transform.
func (c *Camera) GeoM() ebiten.GeoM {
	var m ebiten.GeoM
	m.Translate(-c.X, -c.Y)
	m.Scale(c.Zoom, c.Zoom)
	return m
}

// ScreenToWorld converts a cursor position to world coordinates.
func (c *Camera) ScreenToWorld(x, y int) geom.Vec2 {
	return geom.Vec2{X: c.X + float64(x)/c.Zoom, Y: c.Y + float64(y)/c.Zoom}
}

type InputState struct {
	Dragging   bool
	DragStartX float64
	DragStartY float64
	LastMouseX int
	LastMouseY int
}

type Game struct {
	log       *zap.Logger
	renderer  *render.Renderer
	submitter *ebitengpu.Submitter
	engine    *particle.Engine
	camera    *Camera
	input     InputState
	imgui     *debugui_ebiten.ImguiBackend
	inspector *debugui.SystemInspector

	sparks drawcall.ID
	fire   *particle.System
	bursts []*particle.System

	screen   *ebiten.Image
	lastDraw time.Time
	err      error
}

func newGame(cfg *config.Config, log *zap.Logger, imguiBackend *debugui_ebiten.ImguiBackend) (*Game, error) {
	partition, err := spatial.New(cfg.Partition(), log.Named("spatial"))
	if err != nil {
		return nil, err
	}
	engine, err := particle.NewEngine(cfg.Engine(), log.Named("particle"))
	if err != nil {
		return nil, err
	}
	engine.SetPartition(partition)

	db := drawcall.NewDatabase(log.Named("drawcall"))
	square := ebiten.NewImage(4, 4)
	square.Fill(color.White)
	ground, err := db.Intern(ebitengpu.NewTexture("square", "demo", square), nil)
	if err != nil {
		return nil, err
	}
	sparks, err := db.Intern(ebitengpu.NewTexture("spark", "demo", sparkImage(16)), nil)
	if err != nil {
		return nil, err
	}

	submitter := ebitengpu.NewSubmitter()
	renderer, err := render.NewRenderer(render.Config{
		DrawCalls:    db,
		Submitter:    submitter,
		Partition:    partition,
		Particles:    engine,
		MaxDrawCalls: cfg.Render.MaxDrawCalls,
	}, log.Named("render"))
	if err != nil {
		return nil, err
	}

	g := &Game{
		log:       log,
		renderer:  renderer,
		submitter: submitter,
		engine:    engine,
		sparks:    sparks,
		imgui:     imguiBackend,
		inspector: debugui.NewSystemInspector(engine, 10),
		camera: &Camera{
			X:       WorldWidth/2 - ScreenWidth/2,
			Y:       WorldHeight/2 - ScreenHeight/2,
			Zoom:    1,
			ScreenW: ScreenWidth,
			ScreenH: ScreenHeight,
		},
	}
	renderer.AddCamera(g.camera)
	renderer.Lighting = g.lighting
	renderer.UI = g.ui

	imguiBackend.Windows.Add(debugui.NewPerformanceStats(renderer, 120))
	imguiBackend.Windows.Add(g.inspector)
	imguiBackend.Windows.Add(debugui.WindowFunc(help))

	spawnGround(partition, ground)

	center := geom.Vec2{X: WorldWidth / 2, Y: WorldHeight / 2}
	if g.fire, err = spawnFire(engine, sparks, center); err != nil {
		return nil, err
	}
	g.inspector.Select(g.fire)
	if _, err := spawnSmoke(engine, sparks, center.Add(geom.Vec2{Y: -40})); err != nil {
		return nil, err
	}
	for i := range 4 {
		at := center.Add(geom.Heading(float64(i) * math.Pi / 2).Scale(300))
		if _, err := spawnFountain(engine, sparks, at); err != nil {
			return nil, err
		}
		spawnLamp(partition, ground, at.Add(geom.Vec2{Y: 20}))
	}
	return g, nil
}

// sparkImage returns a white disc whose alpha falls off towards the edge.
func sparkImage(size int) *ebiten.Image {
	pix := make([]byte, size*size*4)
	r := float64(size) / 2
	for y := range size {
		for x := range size {
			d := math.Hypot(float64(x)+0.5-r, float64(y)+0.5-r) / r
			a := byte(255 * geom.Clamp01(1-d*d))
			i := (y*size + x) * 4
			// Premultiplied.
			pix[i], pix[i+1], pix[i+2], pix[i+3] = a, a, a, a
		}
	}
	img := ebiten.NewImage(size, size)
	img.WritePixels(pix)
	return img
}

func (g *Game) Update() error {
	if g.err != nil {
		return g.err
	}
	if ebiten.IsKeyPressed(ebiten.KeyQ) || ebiten.IsKeyPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	g.imgui.Update()
	if !g.imgui.Windows.Input().WantCaptureMouse {
		g.controlCamera()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.fire.SetEnabled(!g.fire.Enabled())
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) && !g.imgui.Windows.Input().WantCaptureMouse {
		at := g.camera.ScreenToWorld(ebiten.CursorPosition())
		burst, err := spawnBurst(g.engine, g.sparks, at)
		if err != nil {
			return err
		}
		g.bursts = append(g.bursts, burst)
	}

	// Bursts emit once; drop them after their particles expire.
	live := g.bursts[:0]
	for _, b := range g.bursts {
		if b.Len() == 0 {
			b.Dispose()
			continue
		}
		live = append(live, b)
	}
	clear(g.bursts[len(live):])
	g.bursts = live
	return nil
}

func (g *Game) controlCamera() {
	camera := g.camera
	input := &g.input

	mx, my := ebiten.CursorPosition()
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		input.Dragging = true
		input.DragStartX = camera.X
		input.DragStartY = camera.Y
		input.LastMouseX = mx
		input.LastMouseY = my
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		input.Dragging = false
	}
	if input.Dragging {
		camera.X = input.DragStartX - float64(mx-input.LastMouseX)/camera.Zoom
		camera.Y = input.DragStartY - float64(my-input.LastMouseY)/camera.Zoom
	}

	_, dy := ebiten.Wheel()
	if dy != 0 {
		anchor := camera.ScreenToWorld(mx, my)
		camera.Zoom = min(max(camera.Zoom+dy*0.2, 0.5), 4)
		camera.X = anchor.X - float64(mx)/camera.Zoom
		camera.Y = anchor.Y - float64(my)/camera.Zoom
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.camera.ScreenW = screen.Bounds().Dx()
	g.camera.ScreenH = screen.Bounds().Dy()

	now := time.Now()
	delta := time.Second / 60
	if !g.lastDraw.IsZero() {
		delta = now.Sub(g.lastDraw)
	}
	g.lastDraw = now

	g.screen = screen
	g.submitter.View = g.camera.GeoM()
	g.submitter.SetTarget(screen)
	if err := g.renderer.RenderFrame(delta); err != nil {
		g.err = err
	}
}

// lighting darkens everything drawn so far. Unlit queues and particles
// that follow stay bright.
func (g *Game) lighting([]geom.Rect) error {
	b := g.screen.Bounds()
	vector.DrawFilledRect(g.screen, 0, 0, float32(b.Dx()), float32(b.Dy()), color.RGBA{0, 0, 24, 150}, false)
	return nil
}

// ui draws the debug windows over the frame.
func (g *Game) ui() error {
	g.imgui.Draw(g.screen)
	return nil
}

func help() {
	imgui.SetNextWindowPosV(imgui.NewVec2(360, 10), imgui.CondOnce, imgui.NewVec2(0, 0))
	if imgui.BeginV("Controls", nil, imgui.WindowFlagsNone) {
		imgui.Text(fmt.Sprintf("TPS %.0f  FPS %.0f", ebiten.ActualTPS(), ebiten.ActualFPS()))
		imgui.Separator()
		imgui.BulletText("LMB drag: pan")
		imgui.BulletText("Wheel: zoom")
		imgui.BulletText("RMB: spark burst")
		imgui.BulletText("Space: toggle fire")
		imgui.BulletText("Q / Esc: quit")
	}
	imgui.End()
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.imgui.Layout(outsideWidth, outsideHeight)
	return outsideWidth, outsideHeight
}
