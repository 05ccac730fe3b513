package core

import (
	"strconv"

	"github.com/gobuffalo/envy"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the event loop polling interval
	// in milliseconds
	EventPollDelay int
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	SwapchainSize    uint32
	DeviceExtensions []string

	ScreenWidth  uint32
	ScreenHeight uint32

	// ShaderDirectory overrides the embedded shaders when set
	ShaderDirectory string
}

// FromEnv builds a Configuration from the environment, falling back
// to usable defaults. Recognised variables:
//
//	PRISM_FPS, PRISM_EVENT_POLL_MS, PRISM_SWAPCHAIN_SIZE,
//	PRISM_SCREEN_WIDTH, PRISM_SCREEN_HEIGHT, PRISM_SHADER_DIR
func FromEnv() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: envInt("PRISM_FPS", 60),
			EventPollDelay:  envInt("PRISM_EVENT_POLL_MS", 2),
		},
		Renderer: RendererConfiguration{
			SwapchainSize:   uint32(envInt("PRISM_SWAPCHAIN_SIZE", 3)),
			ScreenWidth:     uint32(envInt("PRISM_SCREEN_WIDTH", 1280)),
			ScreenHeight:    uint32(envInt("PRISM_SCREEN_HEIGHT", 720)),
			ShaderDirectory: envy.Get("PRISM_SHADER_DIR", ""),
		},
	}
}

func envInt(key string, fallback int) int {
	value, err := strconv.Atoi(envy.Get(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return value
}
