// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/gobuffalo/packr"
	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

const shaderSuffix = ".spv"

// shaderBox embeds the compiled shaders shipped with the backend.
var shaderBox = packr.NewBox("./shaders")

// loadShaders fills the shader module table. A configured directory
// overrides the embedded shaders, which is how development builds
// iterate on shader code without regenerating the box.
func (d *Device) loadShaders(dir string) error {
	d.shaders = make(map[string]vk.ShaderModule)

	if dir != "" {
		return d.loadShadersFromDirectory(dir)
	}

	for _, name := range shaderBox.List() {
		key, ok := shaderKey(name)
		if !ok {
			continue
		}
		contents, err := shaderBox.Find(name)
		if err != nil {
			return err
		}
		module, err := d.createShaderModule(contents)
		if err != nil {
			return err
		}
		d.shaders[key] = module
	}
	return nil
}

// shader file names carry the pipeline stage as their second node,
// only compiled shaders have the .spv extension.
func shaderKey(name string) (string, bool) {
	if !strings.HasSuffix(name, shaderSuffix) {
		return "", false
	}
	key := strings.TrimSuffix(filepath.Base(name), shaderSuffix)
	nodes := strings.Split(key, ".")
	if len(nodes) != 2 {
		return "", false
	}
	switch nodes[1] {
	case "vert", "frag":
		return key, true
	default:
		return "", false
	}
}

func (d *Device) loadShadersFromDirectory(dir string) error {
	return filepath.Walk(dir, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if f.IsDir() {
			return nil
		}
		key, ok := shaderKey(f.Name())
		if !ok {
			return nil
		}

		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		module, err := d.createShaderModule(contents)
		if err != nil {
			return err
		}
		d.shaders[key] = module
		log.Debugf("loaded shader %s from %s", key, dir)
		return nil
	})
}

func (d *Device) createShaderModule(contents []byte) (vk.ShaderModule, error) {
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(contents)),
		PCode:    sliceUint32(contents),
	}

	var shader vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(d.device, &smci, nil, &shader)); err != nil {
		return vk.NullShaderModule, errors.New("vk.CreateShaderModule(): " + err.Error())
	}
	return shader, nil
}

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}

// sliceUint32 reslices bytes into a uint32, that is used
// to sumbit vulkan shaders for processing
func sliceUint32(data []byte) []uint32 {
	const m = 0x7fffffff
	return (*[m / 4]uint32)(unsafe.Pointer((*sliceHeader)(unsafe.Pointer(&data)).Data))[:len(data)/4]
}
