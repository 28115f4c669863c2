package character

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waifuai/waifu-llm-vrm/internal/wire"
)

func newVRMWithEngine(t *testing.T) (*VRMSession, *fakeEngine) {
	t.Helper()
	engine := startFakeEngine(t)
	c := engine.connect(t)

	s, err := NewVRM(Config{Name: "Aiko", LLM: &fakeLLM{}, Connector: c}, "/root/Scene/VRMNode")
	require.NoError(t, err)
	return s, engine
}

func TestNodePathValidation(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "absolute path", path: "/root/Scene/VRMNode"},
		{name: "single segment", path: "/VRM"},
		{name: "empty", path: "", wantErr: true},
		{name: "relative", path: "Scene/VRMNode", wantErr: true},
		{name: "empty segment", path: "/root//VRMNode", wantErr: true},
		{name: "trailing slash", path: "/root/Scene/", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewVRM(Config{Name: "Aiko", LLM: &fakeLLM{}}, tc.path)
			if tc.wantErr {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.path, s.NodePath())
		})
	}
}

func TestSetExpressionValidation(t *testing.T) {
	s, engine := newVRMWithEngine(t)

	// Out of range: rejected with zero engine calls.
	err := s.SetExpression(context.Background(), "Happy", 1.5)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	err = s.SetExpression(context.Background(), "Happy", -0.1)
	require.ErrorAs(t, err, &vErr)
	err = s.SetExpression(context.Background(), "", 0.5)
	require.ErrorAs(t, err, &vErr)
	require.Empty(t, engine.recorded())

	// In range: exactly one engine call carrying the value.
	require.NoError(t, s.SetExpression(context.Background(), "Happy", 0.8))

	calls := engine.recorded()
	require.Len(t, calls, 1)
	require.Equal(t, wire.MethodSetExpression, calls[0].Method)
	require.Equal(t, []any{"/root/Scene/VRMNode", "Happy", 0.8}, calls[0].Args)

	// Closed-range boundaries are accepted.
	require.NoError(t, s.SetExpression(context.Background(), "Happy", 0))
	require.NoError(t, s.SetExpression(context.Background(), "Happy", 1))
	require.Len(t, engine.recorded(), 3)
}

func TestPlayAnimationValidation(t *testing.T) {
	s, engine := newVRMWithEngine(t)

	var vErr *ValidationError
	require.ErrorAs(t, s.PlayAnimation(context.Background(), "", 0), &vErr)
	require.ErrorAs(t, s.PlayAnimation(context.Background(), "Wave", -1), &vErr)
	require.Empty(t, engine.recorded())

	require.NoError(t, s.PlayAnimation(context.Background(), "Wave", 0.25))

	calls := engine.recorded()
	require.Len(t, calls, 1)
	require.Equal(t, wire.MethodPlayAnimation, calls[0].Method)
	require.Equal(t, []any{"/root/Scene/VRMNode", "Wave", 0.25}, calls[0].Args)
}

func TestVRMListQueries(t *testing.T) {
	s, engine := newVRMWithEngine(t)

	anims, err := s.AnimationList(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Idle", "Wave", "Excited"}, anims)

	shapes, err := s.BlendshapeList(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Happy", "Sad", "Neutral"}, shapes)

	// Lists are never cached; each call re-queries the engine.
	_, err = s.AnimationList(context.Background())
	require.NoError(t, err)
	require.Len(t, engine.recorded(), 3)
}
