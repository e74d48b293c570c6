package extract

import (
	"storescout/internal/document"
	"storescout/internal/model"
)

// canonical field names the pattern oracle is asked to map. Unknown extra
// fields in the descriptor are resolved too but land nowhere.
var storeFields = []string{
	"name", "address", "city", "state", "country",
	"postal_code", "phone", "email", "url",
}

// FromDocument runs the pattern descriptor against a full document string
// (static mode). An absent itemSelector means no candidates, not an error.
func FromDocument(html string, pattern model.Pattern) []model.Store {
	ctx, err := document.ParseString("static", html)
	if err != nil {
		return nil
	}
	return resolvePattern(ctx, pattern, model.SourceStaticDocument)
}

// FromContext runs the same selection and resolution against a document
// context (live mode). Faults inside the context (invalid selectors,
// detached nodes, a torn-down frame) yield an empty set.
func FromContext(ctx document.Context, pattern model.Pattern) (out []model.Store) {
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()
	source := model.SourceLiveDocument
	if !ctx.Live() {
		source = model.SourceStaticDocument
	}
	return resolvePattern(ctx, pattern, source)
}

func resolvePattern(ctx document.Context, pattern model.Pattern, source string) []model.Store {
	if pattern.ItemSelector == "" || len(pattern.Fields) == 0 {
		return nil
	}
	root, err := ctx.Root()
	if err != nil {
		return nil
	}

	var out []model.Store
	for _, item := range root.Select(pattern.ItemSelector) {
		store := model.Store{Source: source}
		for _, field := range storeFields {
			descriptor, ok := pattern.Fields[field]
			if !ok {
				continue
			}
			setField(&store, field, ResolveField(item, descriptor))
		}
		if store.Name != "" || store.Address != "" {
			out = append(out, store)
		}
	}
	return out
}

func setField(store *model.Store, field, value string) {
	if value == "" {
		return
	}
	switch field {
	case "name":
		store.Name = value
	case "address":
		store.Address = value
	case "city":
		store.City = value
	case "state":
		store.State = value
	case "country":
		store.Country = value
	case "postal_code":
		store.PostalCode = value
	case "phone":
		store.Phone = value
	case "email":
		store.Email = value
	case "url":
		store.URL = value
	}
}
