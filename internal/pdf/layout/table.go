package layout

// Table is a grid of cell texts recovered from a page. Rows are ordered top
// to bottom and cells left to right; empty cells are kept as "".
type Table struct {
	Strategy string
	Rows     [][]string
}

// Strategy recovers tables from a page.
type Strategy interface {
	Name() string
	FindTables(page *Page) []Table
}

// DefaultStrategies returns the strategies in the order they should be
// tried: drawn rules first, then text alignment.
func DefaultStrategies() []Strategy {
	return []Strategy{NewRuledStrategy(), NewAlignedStrategy()}
}

// FindTables runs the strategies in order and returns the tables of the
// first one that finds any.
func FindTables(page *Page, strategies ...Strategy) []Table {
	if page == nil {
		return nil
	}
	for _, s := range strategies {
		if tables := s.FindTables(page); len(tables) > 0 {
			return tables
		}
	}
	return nil
}
