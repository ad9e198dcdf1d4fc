package toolreg

import (
	"testing"

	"econbench.ai/internal/protocol"
)

type counter struct {
	n int
}

func testRegistry(t *testing.T) *Registry[*counter] {
	t.Helper()
	r := NewRegistry[*counter]()
	r.MustRegister(&Tool[*counter]{
		Name:        "bump",
		Description: "increment the counter",
		Schema: `{
		  "type":"object",
		  "required":["by"],
		  "properties":{"by":{"type":"integer","minimum":1}},
		  "additionalProperties":false
		}`,
		Handler: func(c *counter, in Input) Result {
			c.n += in.Int("by")
			return OK(map[string]any{"n": c.n})
		},
	})
	return r
}

func TestDispatch_UnknownTool(t *testing.T) {
	r := testRegistry(t)
	c := &counter{}
	res := r.Dispatch(c, "nope", nil)
	if res.OK || res.Code != protocol.ErrNotFound {
		t.Fatalf("got %+v want E_NOT_FOUND", res)
	}
}

func TestDispatch_ValidationRejectsBeforeMutation(t *testing.T) {
	r := testRegistry(t)
	c := &counter{}

	res := r.Dispatch(c, "bump", map[string]any{"by": "three"})
	if res.OK || res.Code != protocol.ErrValidation {
		t.Fatalf("got %+v want E_VALIDATION", res)
	}
	if c.n != 0 {
		t.Fatalf("validation failure must not mutate state, n=%d", c.n)
	}

	res = r.Dispatch(c, "bump", map[string]any{"by": float64(0)})
	if res.OK || res.Code != protocol.ErrValidation {
		t.Fatalf("got %+v want E_VALIDATION for minimum", res)
	}
	if c.n != 0 {
		t.Fatalf("validation failure must not mutate state, n=%d", c.n)
	}
}

func TestDispatch_OK(t *testing.T) {
	r := testRegistry(t)
	c := &counter{}
	res := r.Dispatch(c, "bump", map[string]any{"by": float64(3)})
	if !res.OK {
		t.Fatalf("dispatch failed: %+v", res)
	}
	if c.n != 3 {
		t.Fatalf("n=%d want 3", c.n)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := testRegistry(t)
	err := r.Register(&Tool[*counter]{
		Name:    "bump",
		Handler: func(*counter, Input) Result { return OK(nil) },
	})
	if err == nil {
		t.Fatalf("expected duplicate registration rejected")
	}
}

func TestCatalog_Order(t *testing.T) {
	r := testRegistry(t)
	r.MustRegister(&Tool[*counter]{
		Name:    "noop",
		Handler: func(*counter, Input) Result { return OK(nil) },
	})
	cat := r.Catalog()
	if len(cat) != 2 || cat[0].Name != "bump" || cat[1].Name != "noop" {
		t.Fatalf("catalog order wrong: %+v", cat)
	}
}
