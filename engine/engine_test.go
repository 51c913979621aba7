package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/ramtest/pattern"
	"github.com/joshuapare/ramtest/region"
)

// recorder captures the engine's event stream.
type recorder struct {
	loops   []uint64
	started []string
	results map[string][]int
}

func newRecorder() *recorder {
	return &recorder{results: make(map[string][]int)}
}

func (r *recorder) LoopStart(loop, total uint64) { r.loops = append(r.loops, loop) }
func (r *recorder) TestStart(name string)        { r.started = append(r.started, name) }
func (r *recorder) TestResult(name string, faults int) {
	r.results[name] = append(r.results[name], faults)
}

func (r *recorder) runsOf(name string) int { return len(r.results[name]) }

func testRegion(t *testing.T) *region.Region {
	t.Helper()
	r, err := region.FromBytes(make([]byte, 64<<10), 4096)
	require.NoError(t, err)
	return r
}

// fixedTest returns faults on every invocation and counts calls.
func fixedTest(faults int, calls *int) func(a, b []pattern.Word) int {
	return func(a, b []pattern.Word) int {
		*calls++
		return faults
	}
}

func TestHealthyRegionFullBattery(t *testing.T) {
	rec := newRecorder()
	status := Run(context.Background(), testRegion(t), Config{
		Loops:    1,
		Reporter: rec,
	})

	assert.Zero(t, status, "healthy memory must produce exit status 0")
	require.Equal(t, []uint64{1}, rec.loops)
	assert.Equal(t, 1, rec.runsOf(stuckAddressName))
	for _, d := range pattern.Tests {
		assert.Equal(t, []int{0}, rec.results[d.Name], "%s must pass", d.Name)
	}
}

func TestExactLoopCount(t *testing.T) {
	var calls int
	rec := newRecorder()
	status := Run(context.Background(), testRegion(t), Config{
		Loops:    3,
		Tests:    []pattern.Descriptor{{Name: "probe", Op: fixedTest(0, &calls)}},
		Reporter: rec,
	})

	assert.Zero(t, status)
	assert.Equal(t, []uint64{1, 2, 3}, rec.loops)
	assert.Equal(t, 3, calls)
}

func TestSelectionMaskRunsOnlySelectedOrdinals(t *testing.T) {
	var a, b, c int
	rec := newRecorder()
	Run(context.Background(), testRegion(t), Config{
		Loops:     1,
		Selection: 0x3,
		Tests: []pattern.Descriptor{
			{Name: "first", Op: fixedTest(0, &a)},
			{Name: "second", Op: fixedTest(0, &b)},
			{Name: "third", Op: fixedTest(0, &c)},
		},
		Reporter: rec,
	})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
	assert.Zero(t, c, "unselected tests must be skipped")
	assert.Equal(t, []string{stuckAddressName, "first", "second"}, rec.started)
}

func TestFaultDoesNotStopRemainingTests(t *testing.T) {
	var before, after int
	status := Run(context.Background(), testRegion(t), Config{
		Loops: 2,
		Tests: []pattern.Descriptor{
			{Name: "pass", Op: fixedTest(0, &before)},
			{Name: "fail", Op: func(a, b []pattern.Word) int { return 7 }},
			{Name: "also runs", Op: fixedTest(0, &after)},
		},
	})

	assert.Equal(t, ExitOtherTest, status)
	assert.Equal(t, 2, before)
	assert.Equal(t, 2, after, "tests after a failure must still run in every loop")
}

func TestAddressLineFaultSetsOwnBit(t *testing.T) {
	orig := stuckAddress
	stuckAddress = func(w []pattern.Word) int { return 1 }
	defer func() { stuckAddress = orig }()

	var calls int
	status := Run(context.Background(), testRegion(t), Config{
		Loops: 1,
		Tests: []pattern.Descriptor{{Name: "still runs", Op: fixedTest(0, &calls)}},
	})

	assert.Equal(t, ExitAddressLines, status)
	assert.Equal(t, 1, calls, "an address-line failure must not abort the pattern tests")
}

func TestInfiniteLoopsStopOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := newRecorder()
	loops := 0
	Run(ctx, testRegion(t), Config{
		Loops: 0,
		Tests: []pattern.Descriptor{{
			Name: "countdown",
			Op: func(a, b []pattern.Word) int {
				loops++
				if loops == 5 {
					cancel()
				}
				return 0
			},
		}},
		Reporter: rec,
	})

	assert.Equal(t, 5, loops, "loops==0 must run until externally stopped")
	assert.Len(t, rec.loops, 5)
}

func TestRegionResetBetweenTests(t *testing.T) {
	checked := false
	Run(context.Background(), testRegion(t), Config{
		Loops: 1,
		Tests: []pattern.Descriptor{
			{Name: "scribble", Op: func(a, b []pattern.Word) int {
				for i := range a {
					pattern.StoreWord(&a[i], pattern.Word(i))
					pattern.StoreWord(&b[i], ^pattern.Word(i))
				}
				return 0
			}},
			{Name: "expects reset", Op: func(a, b []pattern.Word) int {
				checked = true
				for i := range a {
					if pattern.LoadWord(&a[i]) != resetFill || pattern.LoadWord(&b[i]) != resetFill {
						return 1
					}
				}
				return 0
			}},
		},
	})

	assert.True(t, checked)
}

func TestResetAfterStuckAddress(t *testing.T) {
	// With a mask selecting only an in-place comparison test, the halves
	// must already agree when it runs, or healthy memory would fail.
	status := Run(context.Background(), testRegion(t), Config{
		Loops:     1,
		Selection: 0x2, // Compare XOR only
	})
	assert.Zero(t, status)
}

func TestStatusBitsAccumulateAcrossLoops(t *testing.T) {
	orig := stuckAddress
	call := 0
	stuckAddress = func(w []pattern.Word) int {
		call++
		if call == 1 {
			return 3
		}
		return 0
	}
	defer func() { stuckAddress = orig }()

	failOnce := 0
	status := Run(context.Background(), testRegion(t), Config{
		Loops: 3,
		Tests: []pattern.Descriptor{{
			Name: "fails later",
			Op: func(a, b []pattern.Word) int {
				failOnce++
				if failOnce == 2 {
					return 1
				}
				return 0
			},
		}},
	})

	assert.Equal(t, ExitAddressLines|ExitOtherTest, status)
}

func TestReporterSequence(t *testing.T) {
	rec := newRecorder()
	Run(context.Background(), testRegion(t), Config{
		Loops: 1,
		Tests: []pattern.Descriptor{
			{Name: "one", Op: func(a, b []pattern.Word) int { return 0 }},
			{Name: "two", Op: func(a, b []pattern.Word) int { return 4 }},
		},
		Reporter: rec,
	})

	assert.Equal(t, []string{stuckAddressName, "one", "two"}, rec.started)
	assert.Equal(t, []int{0}, rec.results["one"])
	assert.Equal(t, []int{4}, rec.results["two"])
}

func ExampleRun() {
	r, err := region.FromBytes(make([]byte, 128<<10), 4096)
	if err != nil {
		fmt.Println(err)
		return
	}
	status := Run(context.Background(), r, Config{Loops: 1, Selection: 0x1})
	fmt.Println(status)
	// Output: 0
}
