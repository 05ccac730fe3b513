package main

import (
	"errors"
	"math"
	"runtime"

	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/prism/batch/mesh"
	"github.com/devblok/prism/core"
	"github.com/devblok/prism/gfx"
	"github.com/devblok/prism/model"
	"github.com/devblok/prism/window"
)

func init() {
	runtime.LockOSThread()
}

var configuration = core.FromEnv()

func main() {
	log.SetLevel(log.DebugLevel)

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		panic(err)
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		panic(err)
	}
	defer sdl.VulkanUnloadLibrary()

	backend := window.NewSDL(configuration)
	defer backend.Release()
	events := window.NewEventsLoop(window.SDLEvents{})

	win, err := window.New(backend, events, "Prism", gfx.Extent{
		Width:  configuration.Renderer.ScreenWidth,
		Height: configuration.Renderer.ScreenHeight,
	})
	if err != nil {
		panic(err)
	}

	pass, err := mesh.NewMeshPass(win.Device(), win.Format())
	if err != nil {
		panic(err)
	}

	var angle float32
	meshBatch, batchFuture, err := mesh.NewMeshBatch(win.Device(), win.Queue(), win, pass, makeCamera(win.DrawableExtent(), angle))
	if err != nil {
		panic(err)
	}

	triangle, meshFuture, err := mesh.NewMesh(win.Device(), win.Queue(), triangleData())
	if err != nil {
		panic(err)
	}
	meshBatch.Add(triangle)
	win.JoinFuture(batchFuture.Join(meshFuture))

	time := core.NewTime(configuration.Time)
	defer time.Stop()
	exitC := make(chan struct{}, 2)

EventLoop:
	for {
		select {
		case <-exitC:
			log.Info("Event loop exited")
			break EventLoop
		case <-time.FpsTicker().C:
			events.Poll(func(ev window.Event) {
				switch e := ev.(type) {
				case window.Closed:
					requestExit(exitC)
				case window.Input:
					if key, ok := e.Data.(*sdl.KeyboardEvent); ok && key.Keysym.Sym == sdl.K_ESCAPE {
						requestExit(exitC)
					}
				}
			})

			angle += math.Pi / 360
			camFuture, err := meshBatch.SetCamera(makeCamera(win.DrawableExtent(), angle))
			if err != nil {
				panic(err)
			}
			win.JoinFuture(camFuture)

			err = win.Present(func(w *window.Window, slot int, chain *gfx.FutureChain) (*gfx.FutureChain, error) {
				commands, err := meshBatch.Commands(w, slot)
				if err != nil {
					return nil, err
				}
				token, err := w.Queue().Submit(commands, chain)
				if err != nil {
					return nil, err
				}
				return chain.Join(gfx.NewFutureChain(token)), nil
			})
			if errors.Is(err, gfx.ErrOutOfMemory) {
				log.Error("Out of device memory, shutting down")
				requestExit(exitC)
			} else if err != nil {
				panic(err)
			}
		}
	}

	win.Device().Wait()
	triangle.Release()
	meshBatch.Release()
	pass.Release()
	win.Close()
}

// requestExit collapses repeat exit requests within one tick.
func requestExit(exitC chan struct{}) {
	select {
	case exitC <- struct{}{}:
	default:
	}
}

// makeCamera orbits the view around the mesh at a fixed distance.
func makeCamera(extent gfx.Extent, angle float32) model.Uniform {
	aspect := float32(extent.Width) / float32(extent.Height)
	return model.Uniform{
		Model:      glm.HomogRotate3DY(angle),
		View:       glm.LookAtV(glm.Vec3{0, -0.5, -3}, glm.Vec3{0, 0, 0}, glm.Vec3{0, -1, 0}),
		Projection: glm.Perspective(glm.DegToRad(60), aspect, 0.1, 100),
	}
}

func triangleData() model.MeshData {
	return model.MeshData{
		Name: "triangle",
		Vertices: []model.Vertex{
			{Pos: glm.Vec3{0, -0.5, 0}, Normal: glm.Vec3{0, 0, -1}, Color: glm.Vec4{1, 0, 0, 1}},
			{Pos: glm.Vec3{0.5, 0.5, 0}, Normal: glm.Vec3{0, 0, -1}, Color: glm.Vec4{0, 1, 0, 1}},
			{Pos: glm.Vec3{-0.5, 0.5, 0}, Normal: glm.Vec3{0, 0, -1}, Color: glm.Vec4{0, 0, 1, 1}},
		},
	}
}
