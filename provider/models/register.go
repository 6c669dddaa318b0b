// Package models holds the global model registry. Providers register
// their models here so agents can refer to them by name.
package models

import (
	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/internal/registry"
)

var Global = registry.New[api.Model]()

func Add(model api.Model) {
	Global.Add(model.Name(), model)
}

func Get(name string) (api.Model, bool) {
	return Global.Get(name)
}

func GetOrAdd(name string, modelF func() api.Model) api.Model {
	m, _ := Global.GetOrAdd(name, modelF)
	return m
}

func Del(name string) {
	Global.Del(name)
}
