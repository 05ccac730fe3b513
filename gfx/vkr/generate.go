// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

// Shader sources live next to their compiled form in the box, the
// loader only picks up the .spv files.

//go:generate glslangValidator -V -S vert shaders/sprite.vert.glsl -o shaders/sprite.vert.spv
//go:generate glslangValidator -V -S frag shaders/sprite.frag.glsl -o shaders/sprite.frag.spv
//go:generate glslangValidator -V -S vert shaders/mesh_gbuffers.vert.glsl -o shaders/mesh_gbuffers.vert.spv
//go:generate glslangValidator -V -S frag shaders/mesh_gbuffers.frag.glsl -o shaders/mesh_gbuffers.frag.spv
//go:generate glslangValidator -V -S vert shaders/mesh_history.vert.glsl -o shaders/mesh_history.vert.spv
//go:generate glslangValidator -V -S frag shaders/mesh_history.frag.glsl -o shaders/mesh_history.frag.spv
//go:generate glslangValidator -V -S vert shaders/mesh_target.vert.glsl -o shaders/mesh_target.vert.spv
//go:generate glslangValidator -V -S frag shaders/mesh_target.frag.glsl -o shaders/mesh_target.frag.spv
