package gfx

import "sync/atomic"

var idCounter atomic.Uint64

// NewObjectIDRoot creates a root that issues ids scoped to one render
// target. Roots created by this function are never equal to each other.
func NewObjectIDRoot() ObjectIDRoot {
	return ObjectIDRoot{id: idCounter.Add(1)}
}

// ObjectIDRoot issues ObjectIDs that prove a resource was constructed
// against a specific render target. The zero value is invalid and
// matches no id.
type ObjectIDRoot struct {
	id uint64
}

// MakeID issues a child id of this root.
func (r *ObjectIDRoot) MakeID() ObjectID {
	return ObjectID{root: r.id}
}

// ObjectID is a token recorded by a batch at construction time.
type ObjectID struct {
	root uint64
}

// ChildOf reports whether the id was issued by root.
func (id ObjectID) ChildOf(root *ObjectIDRoot) bool {
	return id.root != 0 && id.root == root.id
}
