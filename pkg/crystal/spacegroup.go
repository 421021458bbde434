package crystal

import (
	"fmt"
	"sort"
	"strings"
)

// SymOp is a crystallographic symmetry operator acting on fractional
// coordinates as x' = R*x + T/12. The rotation part R is an integer matrix
// and the translation part T is stored in twelfths of a cell edge, which
// represents every translation occurring in the space groups exactly.
type SymOp struct {
	R [3][3]int
	T [3]int
}

func identityOp() SymOp {
	return SymOp{R: [3][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// mul returns the composition that applies a first and the receiver second,
// so b.mul(a) maps x to b(a(x)). Translations are reduced modulo one cell
// edge.
func (b SymOp) mul(a SymOp) SymOp {
	var out SymOp
	for i := 0; i < 3; i++ {
		t := b.T[i]
		for j := 0; j < 3; j++ {
			s := 0
			for k := 0; k < 3; k++ {
				s += b.R[i][k] * a.R[k][j]
			}
			out.R[i][j] = s
			t += b.R[i][j] * a.T[j]
		}
		out.T[i] = mod12(t)
	}
	return out
}

// TransformIndex returns the Miller index h' produced by this operator in
// reciprocal space. Indices transform as row vectors, h' = h*R, so that
// h'·x' = h·x holds for the rotated fractional coordinates.
func (op SymOp) TransformIndex(h MillerIndex) MillerIndex {
	return MillerIndex{
		H: h.H*op.R[0][0] + h.K*op.R[1][0] + h.L*op.R[2][0],
		K: h.H*op.R[0][1] + h.K*op.R[1][1] + h.L*op.R[2][1],
		L: h.H*op.R[0][2] + h.K*op.R[1][2] + h.L*op.R[2][2],
	}
}

// String renders the operator as a coordinate triplet such as "-x,y+1/2,-z".
func (op SymOp) String() string {
	var rows [3]string
	for i := 0; i < 3; i++ {
		var b strings.Builder
		for j, axis := range [3]string{"x", "y", "z"} {
			switch op.R[i][j] {
			case 0:
			case 1:
				if b.Len() > 0 {
					b.WriteByte('+')
				}
				b.WriteString(axis)
			case -1:
				b.WriteByte('-')
				b.WriteString(axis)
			default:
				fmt.Fprintf(&b, "%+d%s", op.R[i][j], axis)
			}
		}
		if t := mod12(op.T[i]); t != 0 {
			num, den := t, 12
			for _, d := range []int{6, 4, 3, 2} {
				if num%d == 0 && den%d == 0 {
					num, den = num/d, den/d
				}
			}
			fmt.Fprintf(&b, "+%d/%d", num, den)
		}
		rows[i] = b.String()
	}
	return rows[0] + "," + rows[1] + "," + rows[2]
}

func mod12(v int) int {
	v %= 12
	if v < 0 {
		v += 12
	}
	return v
}

// parseSymOp parses a coordinate triplet like "-x,y+1/2,-z" into a SymOp.
// Each comma-separated term is a signed sum of the letters x, y, z and
// fractions whose value is a multiple of 1/12.
func parseSymOp(triplet string) (SymOp, error) {
	parts := strings.Split(triplet, ",")
	if len(parts) != 3 {
		return SymOp{}, fmt.Errorf("symmetry operator %q must have three comma-separated terms", triplet)
	}
	var op SymOp
	for i, part := range parts {
		s := strings.ReplaceAll(part, " ", "")
		sign := 1
		for pos := 0; pos < len(s); {
			c := s[pos]
			switch {
			case c == '+':
				sign = 1
				pos++
			case c == '-':
				sign = -1
				pos++
			case c == 'x' || c == 'y' || c == 'z':
				op.R[i][int(c-'x')] += sign
				sign = 1
				pos++
			case c >= '0' && c <= '9':
				slash := strings.IndexByte(s[pos:], '/')
				if slash < 0 || slash+pos+1 >= len(s) {
					return SymOp{}, fmt.Errorf("symmetry operator %q: translation must be a fraction", triplet)
				}
				var num, den int
				if _, err := fmt.Sscanf(s[pos:], "%d/%d", &num, &den); err != nil {
					return SymOp{}, fmt.Errorf("symmetry operator %q: bad fraction: %v", triplet, err)
				}
				if den == 0 || (12*num)%den != 0 {
					return SymOp{}, fmt.Errorf("symmetry operator %q: fraction %d/%d is not a multiple of 1/12", triplet, num, den)
				}
				op.T[i] = mod12(op.T[i] + sign*(12*num/den))
				sign = 1
				// Skip past the fraction just parsed.
				pos += slash + 1
				for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
					pos++
				}
			default:
				return SymOp{}, fmt.Errorf("symmetry operator %q: unexpected character %q", triplet, c)
			}
		}
	}
	return op, nil
}

// spaceGroupDef describes one registry entry: the space group number from
// the International Tables and the generating operators beyond the identity.
// The lattice centering is implied by the leading letter of the symbol.
type spaceGroupDef struct {
	number     int
	generators []string
}

// spaceGroupDefs lists the supported symbols across the seven crystal
// systems. Generators follow the standard settings of the International
// Tables for Crystallography, volume A.
var spaceGroupDefs = map[string]spaceGroupDef{
	// Triclinic.
	"P1":  {1, nil},
	"P-1": {2, []string{"-x,-y,-z"}},
	// Monoclinic, unique axis b.
	"P2":    {3, []string{"-x,y,-z"}},
	"P21":   {4, []string{"-x,y+1/2,-z"}},
	"C2":    {5, []string{"-x,y,-z"}},
	"P21/c": {14, []string{"-x,y+1/2,-z+1/2", "-x,-y,-z"}},
	// Orthorhombic.
	"P222":    {16, []string{"-x,-y,z", "x,-y,-z"}},
	"P212121": {19, []string{"-x+1/2,-y,z+1/2", "-x,y+1/2,-z+1/2"}},
	"C2221":   {20, []string{"-x,-y,z+1/2", "x,-y,-z"}},
	// Tetragonal.
	"P4":    {75, []string{"-y,x,z"}},
	"P41":   {76, []string{"-y,x,z+1/4"}},
	"I4":    {79, []string{"-y,x,z"}},
	"P-4":   {81, []string{"y,-x,-z"}},
	"P422":  {89, []string{"-y,x,z", "x,-y,-z"}},
	"P4212": {90, []string{"-y+1/2,x+1/2,z", "-x+1/2,y+1/2,-z"}},
	// Trigonal and rhombohedral (hexagonal setting).
	"P3":  {143, []string{"-y,x-y,z"}},
	"P31": {144, []string{"-y,x-y,z+1/3"}},
	"R3":  {146, []string{"-y,x-y,z"}},
	// Hexagonal.
	"P6":  {168, []string{"x-y,x,z"}},
	"P61": {169, []string{"x-y,x,z+1/6"}},
	// Cubic.
	"P23":  {195, []string{"-x,-y,z", "z,x,y"}},
	"P213": {198, []string{"-x+1/2,-y,z+1/2", "z,x,y"}},
	"I23":  {197, []string{"-x,-y,z", "z,x,y"}},
	"F23":  {196, []string{"-x,-y,z", "z,x,y"}},
}

// centeringVectors returns the lattice translations of a centering type in
// twelfths, always including the zero vector.
func centeringVectors(letter byte) ([][3]int, error) {
	switch letter {
	case 'P':
		return [][3]int{{0, 0, 0}}, nil
	case 'A':
		return [][3]int{{0, 0, 0}, {0, 6, 6}}, nil
	case 'B':
		return [][3]int{{0, 0, 0}, {6, 0, 6}}, nil
	case 'C':
		return [][3]int{{0, 0, 0}, {6, 6, 0}}, nil
	case 'I':
		return [][3]int{{0, 0, 0}, {6, 6, 6}}, nil
	case 'F':
		return [][3]int{{0, 0, 0}, {0, 6, 6}, {6, 0, 6}, {6, 6, 0}}, nil
	case 'R':
		return [][3]int{{0, 0, 0}, {8, 4, 4}, {4, 8, 8}}, nil
	}
	return nil, fmt.Errorf("unknown lattice centering %q", string(letter))
}

// SpaceGroup is a crystallographic space group: the closed set of symmetry
// operators generated from its registry entry, together with the lattice
// centering translations. It answers the two symmetry questions reflection
// prediction needs, systematic absence and orbit membership of Miller
// indices.
type SpaceGroup struct {
	symbol    string
	number    int
	ops       []SymOp
	centering [][3]int
}

// NewSpaceGroup looks up a Hermann-Mauguin symbol in the registry and builds
// the group. Spaces in the symbol are ignored, so "P 21 21 21" and
// "P212121" name the same group.
func NewSpaceGroup(symbol string) (*SpaceGroup, error) {
	key := strings.ReplaceAll(symbol, " ", "")
	def, ok := spaceGroupDefs[key]
	if !ok {
		return nil, fmt.Errorf("unknown space group symbol %q", symbol)
	}

	gens := make([]SymOp, 0, len(def.generators))
	for _, g := range def.generators {
		op, err := parseSymOp(g)
		if err != nil {
			return nil, fmt.Errorf("space group %s: %v", key, err)
		}
		gens = append(gens, op)
	}

	ops, err := closeUnderComposition(gens)
	if err != nil {
		return nil, fmt.Errorf("space group %s: %v", key, err)
	}

	cent, err := centeringVectors(key[0])
	if err != nil {
		return nil, fmt.Errorf("space group %s: %v", key, err)
	}

	return &SpaceGroup{symbol: key, number: def.number, ops: ops, centering: cent}, nil
}

// closeUnderComposition expands a generator set into the full finite group.
// The identity is always the first element; the remaining operators appear
// in the deterministic breadth-first order of discovery.
func closeUnderComposition(gens []SymOp) ([]SymOp, error) {
	const maxOps = 64

	ops := []SymOp{identityOp()}
	seen := map[SymOp]bool{ops[0]: true}
	for _, g := range gens {
		if !seen[g] {
			seen[g] = true
			ops = append(ops, g)
		}
	}

	for i := 0; i < len(ops); i++ {
		for j := 0; j < len(ops); j++ {
			p := ops[i].mul(ops[j])
			if !seen[p] {
				seen[p] = true
				ops = append(ops, p)
				if len(ops) > maxOps {
					return nil, fmt.Errorf("symmetry generators do not close (more than %d operators)", maxOps)
				}
			}
		}
	}
	return ops, nil
}

// Symbol returns the Hermann-Mauguin symbol with spaces removed.
func (sg *SpaceGroup) Symbol() string {
	return sg.symbol
}

// Number returns the space group number in the International Tables.
func (sg *SpaceGroup) Number() int {
	return sg.number
}

// Order returns the number of symmetry operators including those generated
// by lattice centering. It equals the multiplicity of a general position.
func (sg *SpaceGroup) Order() int {
	return len(sg.ops) * len(sg.centering)
}

// IsSystematicallyAbsent reports whether a reflection has exactly zero
// structure-factor amplitude for every possible arrangement of atoms, which
// happens when a lattice centering or a translational operator (screw axis
// or glide plane) forces destructive interference. Absent reflections never
// appear in diffraction patterns and are excluded from prediction.
func (sg *SpaceGroup) IsSystematicallyAbsent(h MillerIndex) bool {
	// Centering rule: h·v must be integral for every lattice translation v.
	for _, v := range sg.centering {
		if mod12(h.H*v[0]+h.K*v[1]+h.L*v[2]) != 0 {
			return true
		}
	}
	// Screw/glide rule: if h is left invariant by a rotation part, the
	// operator's translation must carry h onto an integral phase.
	for _, op := range sg.ops {
		if op.TransformIndex(h) != h {
			continue
		}
		if mod12(h.H*op.T[0]+h.K*op.T[1]+h.L*op.T[2]) != 0 {
			return true
		}
	}
	return false
}

// EquivalentIndices returns the orbit of h under the rotation parts of the
// group, sorted in descending lexicographic order so that the first element
// is the orbit representative. The Friedel mate -h belongs to the orbit
// exactly when the group contains an inversion operator.
func (sg *SpaceGroup) EquivalentIndices(h MillerIndex) []MillerIndex {
	set := make(map[MillerIndex]bool, len(sg.ops))
	for _, op := range sg.ops {
		set[op.TransformIndex(h)] = true
	}
	orbit := make([]MillerIndex, 0, len(set))
	for e := range set {
		orbit = append(orbit, e)
	}
	sort.Slice(orbit, func(i, j int) bool { return orbit[j].Less(orbit[i]) })
	return orbit
}

// IsCanonical reports whether h is the representative of its symmetry
// orbit, the lexicographically greatest equivalent index. Exactly one index
// per orbit is canonical, which makes enumeration deterministic.
func (sg *SpaceGroup) IsCanonical(h MillerIndex) bool {
	for _, op := range sg.ops {
		if h.Less(op.TransformIndex(h)) {
			return false
		}
	}
	return true
}
