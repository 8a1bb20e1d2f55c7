package extension

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testModule struct {
	*Base
	preInit int
}

func (m *testModule) PreInitialize(context.Context) error {
	m.preInit++
	m.AddCommand(&Command{Name: "ping"})
	return nil
}

func (m *testModule) RegisterDependencies(_ context.Context, services *ServiceRegistry) error {
	return services.Register("test.value", 42)
}

// Compile-time assertions
var _ Module = (*testModule)(nil)
var _ DependencyRegistrar = (*testModule)(nil)

func TestBase_StampsModuleID(t *testing.T) {
	m := &testModule{Base: NewBase(Descriptor{ID: "weather", Version: "1.0.0"}, nil, nil, nil)}
	require.NoError(t, m.PreInitialize(context.Background()))
	m.AddEvent(EventMessage, func(context.Context, Event) error { return nil })

	cmds := m.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "weather", cmds[0].ModuleID)
	assert.Equal(t, "weather:ping", cmds[0].QualifiedName())

	events := m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "weather", events[0].ModuleID)
	assert.Equal(t, EventMessage, events[0].Event)
}

func TestBase_DescriptorIsCopied(t *testing.T) {
	d := Descriptor{ID: "weather", Authors: []string{"a"}}
	b := NewBase(d, nil, nil, nil)

	got := b.Descriptor()
	got.Authors[0] = "mutated"

	assert.Equal(t, "a", b.Descriptor().Authors[0])
}

func TestCapabilityDetection(t *testing.T) {
	full := Module(&testModule{Base: NewBase(Descriptor{ID: "x"}, nil, nil, nil)})
	minimal := Module(NewBase(Descriptor{ID: "y"}, nil, nil, nil))

	if _, ok := full.(DependencyRegistrar); !ok {
		t.Error("testModule should implement DependencyRegistrar")
	}
	if _, ok := minimal.(DependencyRegistrar); ok {
		t.Error("Base should NOT implement DependencyRegistrar")
	}
}

func TestWithHooks(t *testing.T) {
	base := NewBase(Descriptor{ID: "scripted"}, nil, nil, nil)
	hookErr := errors.New("boom")
	var called []string

	m := WithHooks(base, &Hooks{
		PreInitialize: func(context.Context) error {
			called = append(called, "pre")
			return nil
		},
		PostInitialize: func(context.Context) error { return hookErr },
	})

	require.NoError(t, m.PreInitialize(context.Background()))
	require.NoError(t, m.Initialize(context.Background()))
	assert.ErrorIs(t, m.PostInitialize(context.Background()), hookErr)
	assert.Equal(t, []string{"pre"}, called)

	registrar, ok := m.(DependencyRegistrar)
	require.True(t, ok)
	assert.NoError(t, registrar.RegisterDependencies(context.Background(), NewServiceRegistry()))
}

func TestCommand_FlagSetAndPermission(t *testing.T) {
	cmd := &Command{
		Name: "setPrefix",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringP("prefix", "p", "", "new prefix")
		},
	}

	fs := cmd.FlagSet()
	require.NoError(t, fs.Parse([]string{"-p", "?", "extra"}))
	prefix, err := fs.GetString("prefix")
	require.NoError(t, err)
	assert.Equal(t, "?", prefix)
	assert.Equal(t, []string{"extra"}, fs.Args())

	ok, err := cmd.Allowed(context.Background(), &Invocation{})
	require.NoError(t, err)
	assert.True(t, ok, "nil permission allows everyone")

	inv := &Invocation{Message: &Message{}}
	assert.ErrorIs(t, inv.Reply(context.Background(), "hi"), ErrNoReplier)
	assert.True(t, inv.Message.Direct())
}
