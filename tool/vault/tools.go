package vault

import (
	"context"

	"github.com/dwasnwk/oktyv/tool"
)

// Tool names.
const (
	GetName    = "vault.get"
	SetName    = "vault.set"
	DeleteName = "vault.delete"
	ListName   = "vault.list"
)

// Tools returns the vault.* tools backed by this store.
func (v *Vault) Tools() []tool.Tool {
	return []tool.Tool{
		&getTool{v},
		&setTool{v},
		&deleteTool{v},
		&listTool{v},
	}
}

type getTool struct{ vault *Vault }

func (t *getTool) Name() string { return GetName }
func (t *getTool) IsAvailable(_ context.Context) bool { return true }

func (t *getTool) Invoke(_ context.Context, params map[string]any) (any, error) {
	name, err := tool.StringParam(params, "name")
	if err != nil {
		return nil, err
	}
	value, err := t.vault.Get(name)
	if err != nil {
		return nil, err
	}
	return map[string]any{"name": name, "value": value}, nil
}

type setTool struct{ vault *Vault }

func (t *setTool) Name() string { return SetName }
func (t *setTool) IsAvailable(_ context.Context) bool { return true }

func (t *setTool) Invoke(_ context.Context, params map[string]any) (any, error) {
	name, err := tool.StringParam(params, "name")
	if err != nil {
		return nil, err
	}
	value, err := tool.StringParam(params, "value")
	if err != nil {
		return nil, err
	}
	if err := t.vault.Set(name, value); err != nil {
		return nil, err
	}
	return map[string]any{"name": name, "stored": true}, nil
}

type deleteTool struct{ vault *Vault }

func (t *deleteTool) Name() string { return DeleteName }
func (t *deleteTool) IsAvailable(_ context.Context) bool { return true }

func (t *deleteTool) Invoke(_ context.Context, params map[string]any) (any, error) {
	name, err := tool.StringParam(params, "name")
	if err != nil {
		return nil, err
	}
	if err := t.vault.Delete(name); err != nil {
		return nil, err
	}
	return map[string]any{"name": name, "deleted": true}, nil
}

type listTool struct{ vault *Vault }

func (t *listTool) Name() string { return ListName }
func (t *listTool) IsAvailable(_ context.Context) bool { return true }

func (t *listTool) Invoke(_ context.Context, _ map[string]any) (any, error) {
	return map[string]any{"names": t.vault.List()}, nil
}
