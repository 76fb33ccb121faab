// Package notebook holds the cell sequence of an evaluation notebook and the
// rules for running cells against a remote evaluator.
//
// A Notebook is an immutable value: every operation returns a new Notebook
// and never mutates the receiver or shares its cell slice, so a snapshot
// handed to a renderer or another goroutine stays valid forever.
//
// Each cell moves through
//
//	Editable --Begin--> Pending --Apply--> Resolved
//
// and Resolved is terminal. The last cell is always the one waiting to be
// filled in: when a run that started on the last cell completes, a fresh
// editable cell is appended.
package notebook

import "fmt"

// Status is the position of a cell in its lifecycle.
type Status int

const (
	Editable Status = iota
	Pending
	Resolved
)

func (s Status) String() string {
	switch s {
	case Editable:
		return "editable"
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Cell is one input/output unit.
type Cell struct {
	// ID is assigned in creation order and never changes, unlike the index.
	ID     int
	Input  string
	Output string
	Status Status
}

// Submission captures a run at the moment it was started.
type Submission struct {
	CellID int
	Index  int
	Input  string
	// WasLast records whether the cell was the last one when the run began.
	WasLast bool
}

// Completion is the outcome of a Submission, ready to be applied.
type Completion struct {
	Submission
	Output string
}

// Notebook is an ordered, append-only sequence of cells.
type Notebook struct {
	cells  []Cell
	nextID int
}

// New returns a notebook holding a single empty editable cell.
func New() Notebook {
	return Notebook{
		cells:  []Cell{{ID: 1, Status: Editable}},
		nextID: 2,
	}
}

// FromInputs returns a notebook with one editable cell per input, followed
// by the usual empty trailing cell.
func FromInputs(inputs ...string) Notebook {
	cells := make([]Cell, 0, len(inputs)+1)
	for i, in := range inputs {
		cells = append(cells, Cell{ID: i + 1, Input: in, Status: Editable})
	}
	cells = append(cells, Cell{ID: len(inputs) + 1, Status: Editable})
	return Notebook{cells: cells, nextID: len(inputs) + 2}
}

// Len returns the number of cells.
func (n Notebook) Len() int {
	n = n.ensure()
	return len(n.cells)
}

// Cells returns a copy of the cell sequence.
func (n Notebook) Cells() []Cell {
	n = n.ensure()
	out := make([]Cell, len(n.cells))
	copy(out, n.cells)
	return out
}

// Cell returns the cell at index.
func (n Notebook) Cell(index int) (Cell, bool) {
	n = n.ensure()
	if index < 0 || index >= len(n.cells) {
		return Cell{}, false
	}
	return n.cells[index], true
}

// Last returns the trailing cell.
func (n Notebook) Last() Cell {
	n = n.ensure()
	return n.cells[len(n.cells)-1]
}

// IndexOf returns the current index of the cell with the given id, or -1.
func (n Notebook) IndexOf(cellID int) int {
	for i, c := range n.cells {
		if c.ID == cellID {
			return i
		}
	}
	return -1
}

// UpdateInput replaces the input of an editable cell. Requests for a missing
// cell or a cell that is no longer editable are ignored.
func (n Notebook) UpdateInput(index int, text string) Notebook {
	n = n.ensure()
	c, ok := n.Cell(index)
	if !ok || c.Status != Editable {
		return n
	}
	return n.replace(c.ID, func(c Cell) Cell {
		c.Input = text
		return c
	})
}

// Begin starts a run of the cell at index. It snapshots the input, records
// whether the cell is the last one, and marks it Pending. ok is false when
// the index is out of range or the cell is not editable; n is then returned
// unchanged.
func (n Notebook) Begin(index int) (next Notebook, sub Submission, ok bool) {
	n = n.ensure()
	c, found := n.Cell(index)
	if !found || c.Status != Editable {
		return n, Submission{}, false
	}

	sub = Submission{
		CellID:  c.ID,
		Index:   index,
		Input:   c.Input,
		WasLast: index == len(n.cells)-1,
	}
	next = n.replace(c.ID, func(c Cell) Cell {
		c.Status = Pending
		return c
	})
	return next, sub, true
}

// Apply resolves the cell a completion belongs to. Only that cell changes.
// If the run started on the last cell, a new editable cell is appended.
// A completion whose cell is not Pending, or that matches no cell at its
// captured position, leaves n unchanged; duplicate deliveries therefore never
// append twice.
func (n Notebook) Apply(c Completion) Notebook {
	n = n.ensure()
	target, ok := n.Cell(c.Index)
	if !ok || target.ID != c.CellID || target.Status != Pending {
		return n
	}

	next := n.replace(c.CellID, func(cell Cell) Cell {
		cell.Output = c.Output
		cell.Status = Resolved
		return cell
	})
	if c.WasLast {
		next = next.appendCell()
	}
	return next
}

// InFlight counts cells whose run has not completed.
func (n Notebook) InFlight() int {
	count := 0
	for _, c := range n.cells {
		if c.Status == Pending {
			count++
		}
	}
	return count
}

// replace maps over every cell and swaps in fn(cell) for the one with id.
func (n Notebook) replace(id int, fn func(Cell) Cell) Notebook {
	cells := make([]Cell, len(n.cells))
	for i, c := range n.cells {
		if c.ID == id {
			c = fn(c)
		}
		cells[i] = c
	}
	return Notebook{cells: cells, nextID: n.nextID}
}

func (n Notebook) appendCell() Notebook {
	cells := make([]Cell, len(n.cells), len(n.cells)+1)
	copy(cells, n.cells)
	cells = append(cells, Cell{ID: n.nextID, Status: Editable})
	return Notebook{cells: cells, nextID: n.nextID + 1}
}

// ensure makes the zero Notebook behave like New().
func (n Notebook) ensure() Notebook {
	if len(n.cells) == 0 {
		return New()
	}
	return n
}
