package agent

import (
	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/internal/registry"
)

// Global holds every agent registered by name, so transfer tools and
// the HTTP listing endpoints can resolve agents without plumbing.
var Global = registry.New[api.Agent]()

func Add(agent api.Agent) {
	Global.Add(agent.Name(), agent)
}

func Get(name string) (api.Agent, bool) {
	return Global.Get(name)
}

func Del(name string) {
	Global.Del(name)
}

// Names lists the registered agent names.
func Names() []string {
	return Global.Keys()
}
