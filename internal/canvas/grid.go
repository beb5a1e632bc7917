package canvas

// Coord is a tile position on the canvas grid, in tiles rather than pixels.
type Coord struct {
	Col int
	Row int
}

// gridPosition is the order in which painters fill the canvas. Each new
// painter extends the occupied region so it stays as close to square as
// possible. Do not reorder: a painter's place depends on it.
var gridPosition = [MaxPainters]Coord{
	// 1      2       3       4       5       6       7       8
	{0, 0}, {1, 0}, {0, 1}, {1, 1}, {2, 0}, {2, 1}, {0, 2}, {1, 2},
	// 9     10      11      12      13      14      15      16
	{2, 2}, {3, 0}, {3, 1}, {3, 2}, {0, 3}, {1, 3}, {2, 3}, {3, 3},
	// 17    18      19      20      21      22      23      24
	{4, 0}, {4, 1}, {4, 2}, {4, 3}, {0, 4}, {1, 4}, {2, 4}, {3, 4},
	// 25    26      27      28      29      30      31      32
	{4, 4}, {5, 0}, {5, 1}, {5, 2}, {5, 3}, {5, 4}, {0, 5}, {1, 5},
	// 33    34      35      36      37      38      39      40
	{2, 5}, {3, 5}, {4, 5}, {5, 5}, {6, 0}, {6, 1}, {6, 2}, {6, 3},
	// 41    42      43      44      45      46      47      48
	{6, 4}, {6, 5}, {0, 6}, {1, 6}, {2, 6}, {3, 6}, {4, 6}, {5, 6},
	// 49    50      51      52      53      54      55      56
	{6, 6}, {7, 0}, {7, 1}, {7, 2}, {7, 3}, {7, 4}, {7, 5}, {7, 6},
	// 57    58      59      60      61      62      63      64
	{0, 7}, {1, 7}, {2, 7}, {3, 7}, {4, 7}, {5, 7}, {6, 7}, {7, 7},
}

// CoordinateOf returns the grid position of the 1-based slot i.
func CoordinateOf(i int) (Coord, bool) {
	if i < 1 || i > len(gridPosition) {
		return Coord{}, false
	}
	return gridPosition[i-1], true
}
