package gfx_test

import (
	"testing"

	"github.com/devblok/prism/gfx"
)

func TestObjectIDAncestry(t *testing.T) {
	root := gfx.NewObjectIDRoot()
	other := gfx.NewObjectIDRoot()

	id := root.MakeID()
	if !id.ChildOf(&root) {
		t.Error("id does not descend from its issuing root")
	}
	if id.ChildOf(&other) {
		t.Error("id descends from a foreign root")
	}
}

func TestObjectIDZeroValue(t *testing.T) {
	var root gfx.ObjectIDRoot
	var id gfx.ObjectID

	if id.ChildOf(&root) {
		t.Error("zero id must not match the zero root")
	}
}
