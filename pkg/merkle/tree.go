// Copyright 2025 Witness Protocol
//
// Merkle Commitment Tree
// Binary tree over 32-byte leaves in insertion order. Internal nodes hash
// the lexicographically smaller child first, so proofs carry no direction
// bits: the tree proves set membership, not position. The final unpaired
// node of an odd level is promoted unchanged.

package merkle

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
)

// HashSize is the size of every leaf and internal node.
const HashSize = 32

// Common errors.
var (
	ErrInvalidLeafHash = errors.New("leaf hash must be 32 bytes")
	ErrIndexOutOfRange = errors.New("leaf index out of range")
)

// Tree is an immutable merkle tree built once from an ordered leaf set.
type Tree struct {
	leaves [][HashSize]byte
	levels [][][HashSize]byte
	root   [HashSize]byte
}

// New builds a tree from ordered 32-byte leaves. An empty leaf set yields
// the zero root; a single leaf is its own root.
func New(leaves [][HashSize]byte) *Tree {
	t := &Tree{
		leaves: make([][HashSize]byte, len(leaves)),
	}
	copy(t.leaves, leaves)

	if len(leaves) == 0 {
		return t
	}

	current := make([][HashSize]byte, len(t.leaves))
	copy(current, t.leaves)
	t.levels = append(t.levels, current)

	for len(current) > 1 {
		next := make([][HashSize]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, HashSorted(current[i], current[i+1]))
			} else {
				// Unpaired node: promoted unchanged to the next level.
				next = append(next, current[i])
			}
		}
		t.levels = append(t.levels, next)
		current = next
	}

	t.root = current[0]
	return t
}

// NewFromSlices builds a tree from variable-length byte slices, validating
// that every leaf is exactly 32 bytes.
func NewFromSlices(leaves [][]byte) (*Tree, error) {
	fixed := make([][HashSize]byte, len(leaves))
	for i, leaf := range leaves {
		if len(leaf) != HashSize {
			return nil, fmt.Errorf("%w: leaf %d has %d bytes", ErrInvalidLeafHash, i, len(leaf))
		}
		copy(fixed[i][:], leaf)
	}
	return New(fixed), nil
}

// Root returns the merkle root. The empty tree's root is 32 zero bytes.
func (t *Tree) Root() [HashSize]byte {
	return t.root
}

// LeafCount returns the number of leaves.
func (t *Tree) LeafCount() int {
	return len(t.leaves)
}

// Leaf returns the leaf at the given index.
func (t *Tree) Leaf(index int) ([HashSize]byte, error) {
	if index < 0 || index >= len(t.leaves) {
		return [HashSize]byte{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(t.leaves))
	}
	return t.leaves[index], nil
}

// IndexOf returns the index of the first leaf equal to hash, or -1.
func (t *Tree) IndexOf(hash [HashSize]byte) int {
	for i, leaf := range t.leaves {
		if bytes.Equal(leaf[:], hash[:]) {
			return i
		}
	}
	return -1
}

// Proof returns the sibling path for the leaf at index: at each level the
// sibling hash is recorded when one exists, then the walk moves to index/2.
// A single-leaf tree has an empty proof.
func (t *Tree) Proof(index int) ([][HashSize]byte, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(t.leaves))
	}

	proof := make([][HashSize]byte, 0)
	current := index

	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]

		sibling := current + 1
		if current%2 == 1 {
			sibling = current - 1
		}
		if sibling < len(nodes) {
			proof = append(proof, nodes[sibling])
		}
		current /= 2
	}

	return proof, nil
}

// VerifyProof folds the sibling path over the leaf with HashSorted and
// compares against the expected root in constant time.
func VerifyProof(leaf [HashSize]byte, proof [][HashSize]byte, root [HashSize]byte) bool {
	current := leaf
	for _, sibling := range proof {
		current = HashSorted(current, sibling)
	}
	return subtle.ConstantTimeCompare(current[:], root[:]) == 1
}

// HashSorted hashes a node pair smaller-first: SHA-256(min(a,b) || max(a,b)).
func HashSorted(a, b [HashSize]byte) [HashSize]byte {
	left, right := a, b
	if bytes.Compare(a[:], b[:]) > 0 {
		left, right = b, a
	}

	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])

	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}
