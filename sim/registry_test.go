package sim

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func TestNewRegistryRejectsBadCapacity(t *testing.T) {
	for _, c := range []int{0, -1, slotMask + 1} {
		if _, err := NewRegistry(c); !errors.Is(err, ErrRegistryInit) {
			t.Errorf("capacity %d: expected ErrRegistryInit, got %v", c, err)
		}
	}
}

func TestRegistryCreateJoinsAtSweep(t *testing.T) {
	r, _ := NewRegistry(8)
	e := &Entity{Kind: KindParticle}
	id := r.Create(e)
	if id == NoID {
		t.Fatal("expected an id")
	}
	if _, ok := r.Find(id); !ok {
		t.Error("spawned entity should be findable immediately")
	}
	if n := len(r.Iterate(KindParticle)); n != 0 {
		t.Errorf("expected empty collection before sweep, got %d", n)
	}
	if n := r.Count(KindParticle); n != 1 {
		t.Errorf("expected count 1 before sweep, got %d", n)
	}
	r.Sweep()
	if n := len(r.Iterate(KindParticle)); n != 1 {
		t.Errorf("expected 1 after sweep, got %d", n)
	}
}

func TestRegistryDestroyIsDeferred(t *testing.T) {
	r, _ := NewRegistry(8)
	e := &Entity{Kind: KindParticle}
	id := r.Create(e)
	r.Sweep()
	if !r.Destroy(id) {
		t.Fatal("expected destroy to succeed")
	}
	if n := len(r.Iterate(KindParticle)); n != 1 {
		t.Errorf("destroyed entity must stay in the collection until sweep, got %d", n)
	}
	if _, ok := r.Find(id); ok {
		t.Error("destroyed entity must not resolve")
	}
	if removed := r.Sweep(); removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
	if r.Destroy(id) {
		t.Error("destroying a swept id should fail")
	}
}

func TestRegistryStaleIDAfterReuse(t *testing.T) {
	r, _ := NewRegistry(1)
	first := r.Create(&Entity{Kind: KindParticle})
	r.Destroy(first)
	r.Sweep()
	second := r.Create(&Entity{Kind: KindParticle})
	if second == NoID {
		t.Fatal("expected slot to be recycled")
	}
	if second == first {
		t.Fatal("recycled slot must carry a new generation")
	}
	if uint32(second)&slotMask != uint32(first)&slotMask {
		t.Errorf("expected same slot, got %d and %d", uint32(first)&slotMask, uint32(second)&slotMask)
	}
	if _, ok := r.Find(first); ok {
		t.Error("stale id resolved to the new entity")
	}
}

func TestRegistryFull(t *testing.T) {
	r, _ := NewRegistry(2)
	r.Create(&Entity{Kind: KindParticle})
	r.Create(&Entity{Kind: KindParticle})
	if id := r.Create(&Entity{Kind: KindParticle}); id != NoID {
		t.Errorf("expected NoID when full, got %d", id)
	}
}

func TestRegistryKeepsCreationOrder(t *testing.T) {
	r, _ := NewRegistry(16)
	var ids []ID
	for range 5 {
		ids = append(ids, r.Create(&Entity{Kind: KindPowerUp}))
	}
	r.Sweep()
	r.Destroy(ids[1])
	r.Destroy(ids[3])
	r.Sweep()
	got := r.Iterate(KindPowerUp)
	want := []ID{ids[0], ids[2], ids[4]}
	if len(got) != len(want) {
		t.Fatalf("expected %d entities, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("position %d: expected %d, got %d", i, want[i], got[i].ID)
		}
	}
}

func TestRegistryInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r, _ := NewRegistry(32)
		alive := map[ID]bool{}
		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 200).Draw(rt, "ops")
		for i, op := range ops {
			switch op {
			case 0:
				if id := r.Create(&Entity{Kind: KindParticle}); id != NoID {
					if alive[id] {
						rt.Fatalf("id %d issued twice while live", id)
					}
					alive[id] = true
				}
			case 1:
				for id := range alive {
					r.Destroy(id)
					delete(alive, id)
					break
				}
			case 2:
				r.Sweep()
			}
			if i%7 == 0 {
				r.Sweep()
			}
			if got := r.Count(KindParticle); got != len(alive) {
				rt.Fatalf("count %d, tracked %d", got, len(alive))
			}
			for id := range alive {
				if _, ok := r.Find(id); !ok {
					rt.Fatalf("live id %d not found", id)
				}
			}
		}
	})
}
