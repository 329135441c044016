package debugui

import (
	"fmt"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/particle"
)

// SystemInspector lists the enabled particle systems of an engine and edits
// the selected one.
type SystemInspector struct {
	Engine *particle.Engine

	maxPerPage  int
	currentPage int
	selected    *particle.System
}

// NewSystemInspector lists e's systems maxPerPage at a time. Values below one
// show one system per page.
func NewSystemInspector(e *particle.Engine, maxPerPage int) *SystemInspector {
	maxPerPage = max(maxPerPage, 1)
	return &SystemInspector{Engine: e, maxPerPage: maxPerPage}
}

// Select makes sys the edited system.
func (si *SystemInspector) Select(sys *particle.System) {
	si.selected = sys
}

// Selected returns the edited system, or nil.
func (si *SystemInspector) Selected() *particle.System { return si.selected }

// page returns the systems shown on the current page, clamping the page to
// the available range.
func (si *SystemInspector) page(systems []*particle.System) ([]*particle.System, int) {
	totalPages := max((len(systems)+si.maxPerPage-1)/si.maxPerPage, 1)
	si.currentPage = min(si.currentPage, totalPages-1)
	start := si.currentPage * si.maxPerPage
	end := min(start+si.maxPerPage, len(systems))
	return systems[start:end], totalPages
}

func (si *SystemInspector) Render() {
	imgui.SetNextWindowPosV(imgui.NewVec2(10, 440), imgui.CondOnce, imgui.NewVec2(0, 0))
	imgui.SetNextWindowSizeV(imgui.NewVec2(340, 300), imgui.CondOnce)
	if !imgui.BeginV("Particle Systems", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	systems := si.Engine.Systems()
	shown, totalPages := si.page(systems)

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg
	if imgui.BeginTableV("SystemTable", 4, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("System")
		imgui.TableSetupColumn("Render Type")
		imgui.TableSetupColumn("Particles")
		imgui.TableSetupColumn("Visible")
		imgui.TableHeadersRow()

		for i, sys := range shown {
			imgui.TableNextRow()

			imgui.TableNextColumn()
			label := fmt.Sprintf("%d", si.currentPage*si.maxPerPage+i)
			if imgui.SelectableBoolV(label, si.selected == sys, imgui.SelectableFlagsSpanAllColumns, imgui.NewVec2(0, 0)) {
				si.selected = sys
			}

			imgui.TableNextColumn()
			imgui.Text(sys.RenderType().String())

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", sys.Len()))

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%t", sys.Visible()))
		}

		imgui.EndTable()
	}

	if totalPages > 1 {
		imgui.Text(fmt.Sprintf("Page %d / %d (%d systems)", si.currentPage+1, totalPages, len(systems)))
		imgui.SameLine()
		if imgui.Button("Prev") && si.currentPage > 0 {
			si.currentPage--
		}
		imgui.SameLine()
		if imgui.Button("Next") && si.currentPage < totalPages-1 {
			si.currentPage++
		}
	} else {
		imgui.Text(fmt.Sprintf("Total: %d systems", len(systems)))
	}

	if si.selected != nil {
		imgui.Separator()
		si.renderSelected(si.selected)
	}

	imgui.End()
}

func (si *SystemInspector) renderSelected(sys *particle.System) {
	enabled := sys.Enabled()
	if imgui.Checkbox("Enabled", &enabled) {
		sys.SetEnabled(enabled)
	}

	pos := sys.Position()
	x, y := float32(pos.X), float32(pos.Y)
	imgui.Text("X:")
	imgui.SameLine()
	imgui.SetNextItemWidth(150)
	if imgui.InputFloat("##x", &x) {
		sys.SetPosition(geom.Vec2{X: float64(x), Y: pos.Y})
	}
	imgui.Text("Y:")
	imgui.SameLine()
	imgui.SetNextItemWidth(150)
	if imgui.InputFloat("##y", &y) {
		sys.SetPosition(geom.Vec2{X: pos.X, Y: float64(y)})
	}

	rot := float32(sys.Rotation())
	imgui.Text("Rotation:")
	imgui.SameLine()
	imgui.SetNextItemWidth(150)
	if imgui.InputFloat("##rotation", &rot) {
		sys.SetRotation(float64(rot))
	}

	if imgui.Button("Emit 50") {
		sys.Emit(50)
	}
	imgui.SameLine()
	if imgui.Button("Clear") {
		sys.Clear()
	}
}
