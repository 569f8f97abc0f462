package features

// Set is the labeled, chronologically ordered training input handed to a
// trainer.
type Set struct {
	Rows []Row
	X    [][]float64
	Y    []int
}

func (s Set) Len() int {
	return len(s.Y)
}

// Split divides the set chronologically: the last heldOut fraction is returned
// as the evaluation part. Both parts are non-empty whenever Len() >= 2.
func (s Set) Split(heldOut float64) (train, test Set) {
	n := s.Len()
	if n == 0 {
		return Set{}, Set{}
	}
	if heldOut <= 0 || heldOut >= 1 || n < 2 {
		return s, Set{}
	}

	testSize := int(float64(n)*heldOut + 0.5)
	if testSize < 1 {
		testSize = 1
	}
	if testSize >= n {
		testSize = n - 1
	}
	cut := n - testSize
	return s.slice(0, cut), s.slice(cut, n)
}

func (s Set) slice(from, to int) Set {
	return Set{Rows: s.Rows[from:to], X: s.X[from:to], Y: s.Y[from:to]}
}

// TrainingSet keeps labeled rows only, in input order.
func TrainingSet(rows []Row) (X [][]float64, y []int) {
	set := NewSet(rows)
	return set.X, set.Y
}

func NewSet(rows []Row) Set {
	set := Set{}
	for _, row := range rows {
		if !row.Labeled {
			continue
		}
		set.Rows = append(set.Rows, row)
		set.X = append(set.X, row.Vector())
		set.Y = append(set.Y, int(row.Target))
	}
	return set
}
