package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	nodeType string
	category string
	meta     *protocol.Metadata
	problems []string
}

func (f *fakeExecutor) Type() string     { return f.nodeType }
func (f *fakeExecutor) Category() string { return f.category }

func (f *fakeExecutor) Execute(ctx context.Context, nodeCtx *protocol.NodeContext) (*protocol.Result, error) {
	return protocol.NewResult(nil), nil
}

func (f *fakeExecutor) Validate(node *models.Node) []string {
	return f.problems
}

type describedExecutor struct {
	fakeExecutor
}

func (d *describedExecutor) Metadata() protocol.Metadata {
	return *d.meta
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&fakeExecutor{nodeType: "utility:echo", category: "utility"})

	assert.True(t, reg.Has("utility:echo"))
	assert.False(t, reg.Has("utility:missing"))

	executor, err := reg.Executor("utility:echo")
	require.NoError(t, err)
	assert.Equal(t, "utility:echo", executor.Type())

	_, err = reg.Executor("ai:chat")
	require.Error(t, err)
	assert.Equal(t, flowerrors.CodeUnknownNodeType, flowerrors.Code(err))
}

func TestRegistry_DuplicateRegistrationOverwrites(t *testing.T) {
	reg := newTestRegistry()
	first := &fakeExecutor{nodeType: "logic:x", category: "logic"}
	second := &fakeExecutor{nodeType: "logic:x", category: "logic"}

	reg.Register(first)
	reg.Register(second)

	assert.Equal(t, []string{"logic:x"}, reg.Types())

	executor, err := reg.Executor("logic:x")
	require.NoError(t, err)
	assert.Same(t, second, executor)
}

func TestRegistry_RegisterIgnoresInvalidExecutors(t *testing.T) {
	reg := newTestRegistry()

	require.NotPanics(t, func() {
		reg.Register(nil)
		reg.Register(&fakeExecutor{category: "logic"})
	})

	assert.Empty(t, reg.Types())
}

func TestRegistry_TypesAndCategories(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&fakeExecutor{nodeType: "logic:b", category: "logic"})
	reg.Register(&fakeExecutor{nodeType: "data:a", category: "data"})
	reg.Register(&fakeExecutor{nodeType: "logic:a", category: "logic"})

	assert.Equal(t, []string{"data:a", "logic:a", "logic:b"}, reg.Types())
	assert.Equal(t, map[string][]string{
		"data":  {"data:a"},
		"logic": {"logic:a", "logic:b"},
	}, reg.Categories())
}

func TestRegistry_DiscoverSkipsBrokenFactories(t *testing.T) {
	reg := newTestRegistry()

	count := reg.Discover([]protocol.Factory{
		func() (protocol.NodeExecutor, error) {
			return &fakeExecutor{nodeType: "utility:ok", category: "utility"}, nil
		},
		func() (protocol.NodeExecutor, error) {
			return nil, errors.New("missing credentials")
		},
		func() (protocol.NodeExecutor, error) {
			panic("bad module")
		},
		func() (protocol.NodeExecutor, error) {
			return nil, nil
		},
		nil,
		func() (protocol.NodeExecutor, error) {
			return &fakeExecutor{nodeType: "utility:also-ok", category: "utility"}, nil
		},
	})

	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"utility:also-ok", "utility:ok"}, reg.Types())
}

func TestRegistry_ValidateUnknownType(t *testing.T) {
	reg := newTestRegistry()

	assert.Equal(t, []string{"Unknown node type: ai:chat"}, reg.Validate("ai:chat", nil))
}

func TestRegistry_ValidateAgainstSchema(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&describedExecutor{fakeExecutor{
		nodeType: "http:call",
		category: "http",
		problems: []string{"url is required", "custom rule broken"},
		meta: &protocol.Metadata{
			Label: "Call",
			Properties: []protocol.Property{
				{Name: "url", Type: protocol.PropertyString, Required: true},
				{Name: "method", Type: protocol.PropertyString, Enum: []any{"GET", "POST"}},
				{Name: "retries", Type: protocol.PropertyNumber, Min: protocol.Float(0), Max: protocol.Float(5)},
			},
		},
	}})

	problems := reg.Validate("http:call", map[string]any{"method": "PATCH", "retries": 9})

	assert.Contains(t, problems, "url is required")
	assert.Contains(t, problems, "custom rule broken")
	assert.Len(t, problems, 4, "duplicate messages are collapsed: %v", problems)

	assert.Equal(t,
		[]string{"url is required", "custom rule broken"},
		reg.Validate("http:call", map[string]any{"url": "https://x", "method": "GET"}),
	)
}

func TestRegistry_ValidateTemplatedValues(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&describedExecutor{fakeExecutor{
		nodeType: "logic:wait",
		category: "logic",
		meta: &protocol.Metadata{
			Properties: []protocol.Property{
				{Name: "duration", Type: protocol.PropertyNumber, Required: true, Min: protocol.Float(0)},
			},
		},
	}})

	assert.Empty(t, reg.Validate("logic:wait", map[string]any{"duration": "{{ .variables.wait }}"}))
	assert.NotEmpty(t, reg.Validate("logic:wait", map[string]any{"duration": "soon"}))
}

func TestRegistry_MetadataAndSchema(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&fakeExecutor{nodeType: "utility:plain", category: "utility"})
	reg.Register(&describedExecutor{fakeExecutor{
		nodeType: "data:set",
		category: "data",
		meta: &protocol.Metadata{
			Label:       "Set",
			Description: "Sets a variable",
			Properties: []protocol.Property{
				{Name: "name", Type: protocol.PropertyString, Label: "Name", Required: true, MinLength: protocol.Int(1)},
				{Name: "value", Type: protocol.PropertyAny},
			},
		},
	}})

	meta, err := reg.Metadata("utility:plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", meta.Label)
	assert.Equal(t, "utility", meta.Category)

	schema, err := reg.Schema("data:set")
	require.NoError(t, err)
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, "Set", schema.Title)
	assert.Equal(t, []string{"name"}, schema.Required)
	assert.Equal(t, "string", schema.Properties["name"].Type)
	assert.Equal(t, 1, *schema.Properties["name"].MinLength)
	assert.Empty(t, schema.Properties["value"].Type)

	_, err = reg.Schema("nope")
	require.Error(t, err)

	assert.Len(t, reg.AllMetadata(), 2)
}

func TestBuildSchema_IsPure(t *testing.T) {
	meta := protocol.Metadata{Properties: []protocol.Property{{Name: "a", Type: "string", Required: true}}}

	first := BuildSchema(meta)
	second := BuildSchema(meta)

	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
}

func TestRegistry_ConcurrentLookups(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&fakeExecutor{nodeType: "utility:echo", category: "utility"})

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				_, err := reg.Executor("utility:echo")
				assert.NoError(t, err)
			}
		}()
	}

	reg.Register(&fakeExecutor{nodeType: "utility:late", category: "utility"})
	wg.Wait()

	assert.True(t, reg.Has("utility:late"))
}
