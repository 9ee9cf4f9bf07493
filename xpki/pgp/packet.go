package pgp

import (
	"golang.org/x/crypto/openpgp/packet"
)

// NodeKind classifies a KeyblockNode by the packet variant it owns, per
// the [spec variant -> concrete type] mapping: PublicKey/PublicSubkey
// and SecretKey/SecretSubkey both come out of the same x/crypto Go
// type and are told apart by IsSubkey.
type NodeKind int

const (
	NodeUnknown NodeKind = iota
	NodePublicKey
	NodePublicSubkey
	NodeSecretKey
	NodeSecretSubkey
	NodeUserId
	NodeSignature
	NodeOnePassSig
)

func (k NodeKind) String() string {
	switch k {
	case NodePublicKey:
		return "PublicKey"
	case NodePublicSubkey:
		return "PublicSubkey"
	case NodeSecretKey:
		return "SecretKey"
	case NodeSecretSubkey:
		return "SecretSubkey"
	case NodeUserId:
		return "UserId"
	case NodeSignature:
		return "Signature"
	case NodeOnePassSig:
		return "OnePassSig"
	default:
		return "Unknown"
	}
}

// classify maps a parsed packet.Packet onto the node kind it
// represents. Packets this pipeline does not track as node types
// (Marker, Comment, and anything else not in §3's variant set) return
// NodeUnknown; the sequencer drops those at the dispatch layer rather
// than ever constructing a node for them.
func classify(p packet.Packet) NodeKind {
	switch v := p.(type) {
	case *packet.PublicKey:
		if v.IsSubkey {
			return NodePublicSubkey
		}
		return NodePublicKey
	case *packet.PrivateKey:
		if v.IsSubkey {
			return NodeSecretSubkey
		}
		return NodeSecretKey
	case *packet.UserId:
		return NodeUserId
	case *packet.Signature:
		return NodeSignature
	case *packet.OnePassSignature:
		return NodeOnePassSig
	default:
		return NodeUnknown
	}
}

// KeyblockNode is one entry in an assembled packet tree: the list head
// is the root packet (a PublicKey/SecretKey, or the first
// Signature/OnePassSig in a detached-signature tree), subsequent nodes
// are its children in document order.
type KeyblockNode struct {
	Kind   NodeKind
	Packet packet.Packet
}

// nodeList is the arena-owned ordered sequence called for in the
// design notes: append is O(1), traversal is sequential, and there is
// no intrusive linked-list pointer chasing to get wrong.
type nodeList struct {
	nodes []*KeyblockNode
}

func newNodeList(first *KeyblockNode) *nodeList {
	return &nodeList{nodes: []*KeyblockNode{first}}
}

func (l *nodeList) append(n *KeyblockNode) {
	l.nodes = append(l.nodes, n)
}

func (l *nodeList) empty() bool { return l == nil || len(l.nodes) == 0 }

func (l *nodeList) root() *KeyblockNode {
	if l.empty() {
		return nil
	}
	return l.nodes[0]
}

func (l *nodeList) rootKind() NodeKind {
	if l.empty() {
		return NodeUnknown
	}
	return l.nodes[0].Kind
}

// children returns every node after the root, in document order.
func (l *nodeList) children() []*KeyblockNode {
	if l.empty() || len(l.nodes) < 2 {
		return nil
	}
	return l.nodes[1:]
}
