// Package debugui provides Dear ImGui windows for inspecting the renderer and
// particle engine at runtime.
package debugui

import (
	"github.com/AllenDang/cimgui-go/imgui"
)

// Window is a Dear ImGui window drawn once per frame.
type Window interface {
	Render()
}

// WindowFunc adapts a function to Window.
type WindowFunc func()

func (f WindowFunc) Render() { f() }

// InputState tracks Dear ImGui's input capture state.
// Use this to determine if ImGui is consuming mouse or keyboard input.
type InputState struct {
	WantCaptureMouse    bool
	WantCaptureKeyboard bool
}

// Windows renders a set of windows between the backend's BeginFrame and
// EndFrame.
type Windows struct {
	items []Window
	input InputState
}

// Add registers w. Windows render in registration order.
func (ws *Windows) Add(w Window) {
	ws.items = append(ws.items, w)
}

// Len returns the number of registered windows.
func (ws *Windows) Len() int { return len(ws.items) }

// Render updates the input state and renders every window.
func (ws *Windows) Render() {
	io := imgui.CurrentIO()
	ws.input.WantCaptureMouse = io.WantCaptureMouse()
	ws.input.WantCaptureKeyboard = io.WantCaptureKeyboard()

	for _, w := range ws.items {
		w.Render()
	}
}

// Input returns the capture state observed by the last Render.
func (ws *Windows) Input() InputState { return ws.input }
