package gemini

import (
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/provider"
	"google.golang.org/api/option"
)

var modelRegistry = haxmap.New[string, api.Model]()

func Flash(opts ...option.ClientOption) api.Model {
	return Model("gemini-2.0-flash", opts...)
}

func FlashLite(opts ...option.ClientOption) api.Model {
	return Model("gemini-2.0-flash-lite", opts...)
}

func Pro(opts ...option.ClientOption) api.Model {
	return Model("gemini-1.5-pro", opts...)
}

// Model returns the registered model for name, creating it on first
// use. The underlying client is built lazily from the client options.
func Model(name string, opts ...option.ClientOption) api.Model {
	m, _ := modelRegistry.GetOrCompute(name, func() api.Model {
		return &model{
			name: name,
			opts: opts,
		}
	})
	return m
}

var _ api.Model = (*model)(nil)

type model struct {
	name string
	opts []option.ClientOption

	prov     provider.Provider
	provOnce sync.Once
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Provider() provider.Provider {
	m.provOnce.Do(func() {
		m.prov = New(m.opts...)
	})
	return m.prov
}
