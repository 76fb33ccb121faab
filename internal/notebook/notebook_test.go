package notebook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkInvariants asserts the properties every quiescent notebook must hold.
func checkInvariants(t *testing.T, nb Notebook) {
	t.Helper()
	cells := nb.Cells()
	require.NotEmpty(t, cells)

	last := cells[len(cells)-1]
	if nb.InFlight() == 0 {
		assert.Equal(t, Editable, last.Status, "last cell must be editable")
		assert.Empty(t, last.Output, "last cell must have no output")
	}

	seen := map[int]bool{}
	prev := 0
	for _, c := range cells {
		assert.False(t, seen[c.ID], "duplicate id %d", c.ID)
		seen[c.ID] = true
		assert.Greater(t, c.ID, prev, "ids must increase with position")
		prev = c.ID
	}
}

func TestNew(t *testing.T) {
	nb := New()
	require.Equal(t, 1, nb.Len())
	assert.Equal(t, Cell{ID: 1, Status: Editable}, nb.Last())
	checkInvariants(t, nb)
}

func TestZeroValueActsLikeNew(t *testing.T) {
	var nb Notebook
	assert.Equal(t, 1, nb.Len())
	assert.Equal(t, Editable, nb.Last().Status)

	nb = nb.UpdateInput(0, "1")
	c, _ := nb.Cell(0)
	assert.Equal(t, "1", c.Input)
}

func TestUpdateInput(t *testing.T) {
	nb := New().UpdateInput(0, "2+2")

	c, ok := nb.Cell(0)
	require.True(t, ok)
	assert.Equal(t, "2+2", c.Input)
	assert.Equal(t, Editable, c.Status)

	// out of range is ignored
	same := nb.UpdateInput(3, "x").UpdateInput(-1, "y")
	assert.Equal(t, nb.Cells(), same.Cells())
}

func TestUpdateInputDoesNotMutateReceiver(t *testing.T) {
	before := New()
	after := before.UpdateInput(0, "x")

	c, _ := before.Cell(0)
	assert.Empty(t, c.Input)
	c, _ = after.Cell(0)
	assert.Equal(t, "x", c.Input)
}

func TestBegin(t *testing.T) {
	nb := New().UpdateInput(0, "2+2")

	next, sub, ok := nb.Begin(0)
	require.True(t, ok)
	assert.Equal(t, Submission{CellID: 1, Index: 0, Input: "2+2", WasLast: true}, sub)

	c, _ := next.Cell(0)
	assert.Equal(t, Pending, c.Status)
	assert.Equal(t, 1, next.InFlight())

	// pending cells can be neither edited nor rerun
	edited := next.UpdateInput(0, "3+3")
	c, _ = edited.Cell(0)
	assert.Equal(t, "2+2", c.Input)

	_, _, ok = next.Begin(0)
	assert.False(t, ok)

	_, _, ok = next.Begin(5)
	assert.False(t, ok)
}

func TestRunOnlyCellAppendsOne(t *testing.T) {
	nb := New().UpdateInput(0, "2+2")
	nb, sub, ok := nb.Begin(0)
	require.True(t, ok)

	nb = nb.Apply(Completion{Submission: sub, Output: "4"})

	require.Equal(t, 2, nb.Len())
	first, _ := nb.Cell(0)
	assert.Equal(t, Cell{ID: 1, Input: "2+2", Output: "4", Status: Resolved}, first)
	assert.Equal(t, Cell{ID: 2, Input: "", Output: "", Status: Editable}, nb.Last())
	checkInvariants(t, nb)
}

func TestResolvedCellIsImmutable(t *testing.T) {
	nb, sub, _ := New().UpdateInput(0, "1").Begin(0)
	nb = nb.Apply(Completion{Submission: sub, Output: "1"})

	nb2 := nb.UpdateInput(0, "changed")
	c, _ := nb2.Cell(0)
	assert.Equal(t, "1", c.Input)
	assert.Equal(t, Resolved, c.Status)

	_, _, ok := nb2.Begin(0)
	assert.False(t, ok, "resolved cells cannot be rerun")
}

func TestDuplicateCompletionIsIdempotent(t *testing.T) {
	nb, sub, _ := New().UpdateInput(0, "2+2").Begin(0)
	done := Completion{Submission: sub, Output: "4"}

	once := nb.Apply(done)
	twice := once.Apply(done)

	assert.Equal(t, once.Cells(), twice.Cells())
	assert.Equal(t, 2, twice.Len(), "duplicate delivery must not append again")

	// a late duplicate with different text does not overwrite either
	thrice := twice.Apply(Completion{Submission: sub, Output: "5"})
	c, _ := thrice.Cell(0)
	assert.Equal(t, "4", c.Output)
}

func TestApplyUsesInitiationTimeLength(t *testing.T) {
	// Simulate a notebook with two editable cells: run cell 0 (not last).
	nb := FromInputs("x")

	nb, sub, ok := nb.Begin(0)
	require.True(t, ok)
	assert.False(t, sub.WasLast)

	nb = nb.Apply(Completion{Submission: sub, Output: "x"})
	assert.Equal(t, 2, nb.Len(), "running a non-last cell never grows the notebook")
	checkInvariants(t, nb)
}

func TestOutOfOrderCompletions(t *testing.T) {
	nb := FromInputs("slow", "fast")

	nb, sub0, ok := nb.Begin(0)
	require.True(t, ok)
	nb, sub1, ok := nb.Begin(1)
	require.True(t, ok)
	assert.False(t, sub0.WasLast)
	assert.False(t, sub1.WasLast)

	// cell 1 answers first
	nb = nb.Apply(Completion{Submission: sub1, Output: "FAST"})
	c0, _ := nb.Cell(0)
	c1, _ := nb.Cell(1)
	assert.Equal(t, Cell{ID: 1, Input: "slow", Status: Pending}, c0, "cell 0 untouched")
	assert.Equal(t, Cell{ID: 2, Input: "fast", Output: "FAST", Status: Resolved}, c1)
	assert.Equal(t, 3, nb.Len())

	nb = nb.Apply(Completion{Submission: sub0, Output: "SLOW"})
	c0, _ = nb.Cell(0)
	assert.Equal(t, Cell{ID: 1, Input: "slow", Output: "SLOW", Status: Resolved}, c0)
	assert.Equal(t, 3, nb.Len())
	checkInvariants(t, nb)
}

func TestFromInputs(t *testing.T) {
	nb := FromInputs("a", "b")
	assert.Equal(t, []Cell{
		{ID: 1, Input: "a", Status: Editable},
		{ID: 2, Input: "b", Status: Editable},
		{ID: 3, Status: Editable},
	}, nb.Cells())
	checkInvariants(t, nb)

	assert.Equal(t, New().Cells(), FromInputs().Cells())

	// appended cells continue the id sequence
	nb, sub, _ := nb.Begin(2)
	nb = nb.Apply(Completion{Submission: sub})
	assert.Equal(t, 4, nb.Last().ID)
}

func TestApplyRejectsMismatchedCompletion(t *testing.T) {
	nb, sub, _ := New().UpdateInput(0, "1").Begin(0)

	wrongID := sub
	wrongID.CellID = 99
	assert.Equal(t, nb.Cells(), nb.Apply(Completion{Submission: wrongID, Output: "x"}).Cells())

	wrongIndex := sub
	wrongIndex.Index = 4
	assert.Equal(t, nb.Cells(), nb.Apply(Completion{Submission: wrongIndex, Output: "x"}).Cells())
}

func TestIndexOf(t *testing.T) {
	nb, sub, _ := New().Begin(0)
	nb = nb.Apply(Completion{Submission: sub})

	assert.Equal(t, 0, nb.IndexOf(1))
	assert.Equal(t, 1, nb.IndexOf(2))
	assert.Equal(t, -1, nb.IndexOf(3))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "editable", Editable.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "resolved", Resolved.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
