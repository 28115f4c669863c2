package character

import (
	"context"
	"strings"

	"github.com/waifuai/waifu-llm-vrm/internal/wire"
)

// VRMSession is a character bound to a VRM model node in the scene tree. It
// extends Session with animation and blend-shape control.
type VRMSession struct {
	*Session
	nodePath string
}

// NewVRM creates a VRM-bound session. The node path is validated here and
// immutable afterwards.
func NewVRM(cfg Config, nodePath string) (*VRMSession, error) {
	if err := validateNodePath(nodePath); err != nil {
		return nil, err
	}
	base, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &VRMSession{Session: base, nodePath: nodePath}, nil
}

// validateNodePath checks that the path is absolute and engine-path-shaped
// (e.g. "/root/Scene/VRMNode").
func validateNodePath(path string) error {
	if path == "" {
		return &ValidationError{Field: "node path", Reason: "must not be empty"}
	}
	if !strings.HasPrefix(path, "/") {
		return &ValidationError{Field: "node path", Reason: "must be absolute (start with '/')"}
	}
	for _, segment := range strings.Split(path[1:], "/") {
		if strings.TrimSpace(segment) == "" {
			return &ValidationError{Field: "node path", Reason: "must not contain empty segments"}
		}
	}
	return nil
}

// NodePath returns the validated scene-node address.
func (s *VRMSession) NodePath() string { return s.nodePath }

// PlayAnimation plays a named animation on the VRM node, cross-fading over
// blendTime seconds. Arguments are validated before any engine I/O.
func (s *VRMSession) PlayAnimation(ctx context.Context, name string, blendTime float64) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "animation name", Reason: "must not be empty"}
	}
	if blendTime < 0 {
		return &ValidationError{Field: "blend time", Reason: "must not be negative"}
	}
	_, err := s.call(ctx, wire.MethodPlayAnimation, s.nodePath, name, blendTime)
	return err
}

// SetExpression sets a VRM blend-shape weight. The weight must be within the
// closed range [0, 1]; out-of-range values are rejected without contacting
// the engine.
func (s *VRMSession) SetExpression(ctx context.Context, name string, value float64) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "expression name", Reason: "must not be empty"}
	}
	if value < 0 || value > 1 {
		return &ValidationError{Field: "expression value", Reason: "must be within [0, 1]"}
	}
	_, err := s.call(ctx, wire.MethodSetExpression, s.nodePath, name, value)
	return err
}

// AnimationList queries the engine for the node's animation names. The list
// is re-queried on every call, never cached.
func (s *VRMSession) AnimationList(ctx context.Context) ([]string, error) {
	raw, err := s.call(ctx, wire.MethodGetAnimationList, s.nodePath)
	if err != nil {
		return nil, err
	}
	return wire.DecodeStringList(raw)
}

// BlendshapeList queries the engine for the node's blend-shape names. The
// list is re-queried on every call, never cached.
func (s *VRMSession) BlendshapeList(ctx context.Context) ([]string, error) {
	raw, err := s.call(ctx, wire.MethodGetBlendshapeList, s.nodePath)
	if err != nil {
		return nil, err
	}
	return wire.DecodeStringList(raw)
}
