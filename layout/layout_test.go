package layout

import "testing"

func TestNewRejectsZeroDimensions(t *testing.T) {
	cases := []struct {
		name                             string
		asicFs, asicSs                   uint16
		nasicsFs, nasicsSs               uint8
	}{
		{"zero asic_fs", 0, 8, 2, 2},
		{"zero asic_ss", 8, 0, 2, 2},
		{"zero nasics_fs", 8, 8, 0, 2},
		{"zero nasics_ss", 8, 8, 2, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := New(c.asicFs, c.asicSs, c.nasicsFs, c.nasicsSs); err == nil {
				t.Fatalf("expected an error for %s", c.name)
			}
		})
	}
}

func TestLinearCoordsRoundTrip(t *testing.T) {
	d, err := New(4, 4, 2, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for ss := 0; ss < int(d.PixSs); ss++ {
		for fs := 0; fs < int(d.PixFs); fs++ {
			p := d.Linear(fs, ss)
			gotFs, gotSs := d.Coords(p)
			if gotFs != fs || gotSs != ss {
				t.Fatalf("Coords(Linear(%d,%d)) = (%d,%d), want (%d,%d)", fs, ss, gotFs, gotSs, fs, ss)
			}
		}
	}
}

func TestAsicsRowMajorOrder(t *testing.T) {
	d, err := New(4, 4, 3, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	asics := d.Asics()
	if len(asics) != 6 {
		t.Fatalf("len(Asics()) = %d, want 6", len(asics))
	}
	want := []Asic{{0, 0}, {1, 0}, {2, 0}, {0, 1}, {1, 1}, {2, 1}}
	for i, a := range asics {
		if a != want[i] {
			t.Fatalf("Asics()[%d] = %+v, want %+v", i, a, want[i])
		}
	}
}

func TestBoundsAndInsideAsic(t *testing.T) {
	d, err := New(4, 4, 2, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := Asic{Ax: 1, Ay: 0}
	fsLo, fsHi, ssLo, ssHi := d.Bounds(a)
	if fsLo != 4 || fsHi != 8 || ssLo != 0 || ssHi != 4 {
		t.Fatalf("Bounds = (%d,%d,%d,%d), want (4,8,0,4)", fsLo, fsHi, ssLo, ssHi)
	}

	if !d.InsideAsic(a, 5.5, 2.0) {
		t.Fatalf("expected (5.5, 2.0) to be inside asic %+v", a)
	}
	if d.InsideAsic(a, 4.0, 2.0) {
		t.Fatalf("expected the left edge to be excluded (strict interior)")
	}
	if d.InsideAsic(a, 7.0, 2.0) {
		t.Fatalf("expected the right edge to be excluded (strict interior)")
	}
}

func TestPixNDerivation(t *testing.T) {
	d, err := New(8, 6, 3, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.PixFs != 24 || d.PixSs != 12 {
		t.Fatalf("PixFs/PixSs = %d/%d, want 24/12", d.PixFs, d.PixSs)
	}
	if d.PixN != 288 {
		t.Fatalf("PixN = %d, want 288", d.PixN)
	}
}
