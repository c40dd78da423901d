package scraper

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"
)

// rodTab adapts a rod page to the interact.Tab interface so the interaction
// and challenge packages stay decoupled from rod.
type rodTab struct {
	page *rod.Page
}

func (t *rodTab) Eval(ctx context.Context, js string) (gson.JSON, error) {
	res, err := t.page.Context(ctx).Eval(js)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}
