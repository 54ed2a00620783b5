package cache

import (
	"image/color"
	"strings"
	"testing"
)

// Set/Get/Remove invariants under arbitrary keys.
func FuzzCache_SetGetRemove(f *testing.F) {
	f.Add("")
	f.Add("http://x/a.jpg")
	f.Add("αβγ")
	f.Add(strings.Repeat("x", 1024))

	f.Fuzz(func(t *testing.T, k string) {
		if len(k) > 1<<12 {
			k = k[:1<<12]
		}
		c := New(Options{Capacity: 16})
		img := solid(1, 1, color.Gray{Y: 3})

		c.Set(k, img)
		if got, ok := c.Get(k); !ok || got != img {
			t.Fatalf("after Set/Get: ok=%v", ok)
		}
		if !c.Remove(k) {
			t.Fatal("Remove must return true")
		}
		if _, ok := c.Get(k); ok {
			t.Fatal("key must be absent after Remove")
		}
	})
}
