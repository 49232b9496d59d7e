package sim

import "math"

// FormationKind names an analytic slot layout.
type FormationKind uint8

const (
	FormationGrid FormationKind = iota
	FormationDiamond
	FormationSpiral
	FormationV
	FormationCircle
	FormationWall
	FormationSwarm
	formationKindCount
)

var formationNames = [formationKindCount]string{"grid", "diamond", "spiral", "v", "circle", "wall", "swarm"}

func (k FormationKind) String() string {
	if k >= formationKindCount {
		return "unknown"
	}
	return formationNames[k]
}

// ParseFormation maps a level-file name to a formation kind.
func ParseFormation(s string) (FormationKind, bool) {
	for i, name := range formationNames {
		if name == s {
			return FormationKind(i), true
		}
	}
	return FormationGrid, false
}

// Formation maps a slot index to a position relative to the formation
// origin. Positions are never stored; they are recomputed from the slot
// index every tick.
type Formation struct {
	Kind     FormationKind
	Columns  int
	SpacingX float64
	SpacingY float64
}

const goldenAngle = 2.399963229728653

// Position returns the offset of slot i in a formation of n slots.
func (f Formation) Position(i, n int) Vec {
	cols := max(f.Columns, 1)
	sx, sy := f.SpacingX, f.SpacingY
	cx := float64(cols-1) * sx / 2
	if n < 1 {
		n = 1
	}

	switch f.Kind {
	case FormationDiamond:
		row, k, width := diamondCell(i, n)
		return Vec{cx + (float64(k)-float64(width-1)/2)*sx, float64(row) * sy}
	case FormationSpiral:
		r := sx * 0.6 * math.Sqrt(float64(i))
		return Vec{cx + r*math.Cos(float64(i)*goldenAngle), sy*1.5 + r*math.Sin(float64(i)*goldenAngle)*0.6}
	case FormationV:
		k := (i + 1) / 2
		side := 1.0
		if i%2 == 1 {
			side = -1
		}
		return Vec{cx + side*float64(k)*sx*0.6, float64(k) * sy * 0.5}
	case FormationCircle:
		r := math.Max(sx*float64(n)/(2*math.Pi), sx)
		a := 2 * math.Pi * float64(i) / float64(n)
		return Vec{cx + r*math.Cos(a), r + r*math.Sin(a)*0.6}
	case FormationWall:
		wcols := (n + 1) / 2
		col, row := i%wcols, i/wcols
		wsx := sx * 0.75
		return Vec{cx + (float64(col)-float64(wcols-1)/2)*wsx, float64(row) * sy * 0.6}
	case FormationSwarm:
		rows := (n + cols - 1) / cols
		h := hashSlot(uint64(i))
		fx := float64(h&0xffff) / 0xffff
		fy := float64(h>>16&0xffff) / 0xffff
		return Vec{fx * float64(cols-1) * sx, fy * float64(max(rows-1, 1)) * sy}
	}
	col, row := i%cols, i/cols
	return Vec{float64(col) * sx, float64(row) * sy}
}

// diamondCell walks row widths 1, 2, ..., m, ..., 2, 1 and returns the row,
// the position within it, and the row width for slot i.
func diamondCell(i, n int) (row, k, width int) {
	m := 1
	for m*m < n {
		m++
	}
	rows := 2*m - 1
	for r := 0; r < rows; r++ {
		w := r + 1
		if r >= m {
			w = rows - r
		}
		if i < w {
			return r, i, w
		}
		i -= w
	}
	return rows - 1 + i, 0, 1
}

// hashSlot is splitmix64, used so swarm slots scatter without shared RNG
// state.
func hashSlot(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ x>>30) * 0xbf58476d1ce4e5b9
	x = (x ^ x>>27) * 0x94d049bb133111eb
	return x ^ x>>31
}

// blend interpolates between two formations during a shift; t is clamped
// to [0, 1].
func blend(from, to Formation, i, n int, t float64) Vec {
	t = Clamp(t, 0, 1)
	return Lerp(from.Position(i, n), to.Position(i, n), t)
}
